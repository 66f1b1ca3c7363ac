package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/servimatch/servimatch/internal/config"
	"github.com/servimatch/servimatch/internal/domain"
)

// RankedTechnician is one row of the scoring service's answer.
type RankedTechnician struct {
	TechnicianID  uuid.UUID `json:"technician_id"`
	Score         float64   `json:"score"`
	DistanceKM    float64   `json:"distance_km,omitempty"`
	AvgRating     float64   `json:"avg_rating,omitempty"`
	CompletedJobs int       `json:"completed_jobs,omitempty"`
}

// Client talks to the external ranking service. It retries transient
// failures with exponential backoff up to the configured attempt ceiling and
// fails fast on a definitive model-unavailable answer. It is advisory only;
// callers degrade to an unranked listing when it errors.
type Client struct {
	baseURL        string
	http           *http.Client
	maxAttempts    int
	initialBackoff time.Duration
	log            zerolog.Logger
}

func NewClient(cfg config.RankingConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:        cfg.BaseURL,
		http:           &http.Client{Timeout: cfg.RequestTimeout},
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		log:            log,
	}
}

// RankTechnicians returns the scored candidate list for a request.
func (c *Client) RankTechnicians(ctx context.Context, requestID uuid.UUID) ([]RankedTechnician, error) {
	var ranked []RankedTechnician

	attempt := 0
	op := func() error {
		attempt++
		list, err := c.recommend(ctx, requestID)
		if err != nil {
			c.log.Debug().Int("attempt", attempt).Err(err).Msg("ranking call failed")
			return err
		}
		ranked = list
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	wrapped := backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(c.maxAttempts-1)), ctx)

	if err := backoff.Retry(op, wrapped); err != nil {
		return nil, err
	}
	return ranked, nil
}

func (c *Client) recommend(ctx context.Context, requestID uuid.UUID) ([]RankedTechnician, error) {
	payload, _ := json.Marshal(map[string]string{"request_id": requestID.String()})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/recommend", bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Connection refused, timeout: transient.
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var ranked []RankedTechnician
		if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode ranking response: %w", err))
		}
		return ranked, nil

	case resp.StatusCode == http.StatusServiceUnavailable:
		// The definitive no-model answer. Retrying will not help.
		return nil, backoff.Permanent(domain.ErrModelUnavailable)

	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("ranking service returned %d", resp.StatusCode)

	default:
		return nil, backoff.Permanent(fmt.Errorf("ranking service returned %d", resp.StatusCode))
	}
}

// Health probes the scoring service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ranking service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

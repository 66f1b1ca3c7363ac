package channel

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/servimatch/servimatch/internal/domain"
)

// Channel key kinds.
const (
	KindRequest     = "request"
	KindAssignment  = "assignment"
	KindTechnicians = "technicians"
)

// ParseKey splits a routing key into its kind and entity id. The technicians
// broadcast key carries no id.
func ParseKey(key string) (kind string, id uuid.UUID, err error) {
	if key == domain.TechniciansChannel {
		return KindTechnicians, uuid.Nil, nil
	}
	kind, raw, ok := strings.Cut(key, ":")
	if !ok || (kind != KindRequest && kind != KindAssignment) {
		return "", uuid.Nil, fmt.Errorf("unknown channel key %q", key)
	}
	id, err = uuid.Parse(raw)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("bad channel key %q: %w", key, err)
	}
	return kind, id, nil
}

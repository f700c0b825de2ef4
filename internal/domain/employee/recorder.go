package employee

import (
	"context"
	"fmt"

	"github.com/ahrav/streambatch/internal/domain/stream"
)

var _ stream.Processor[Employee] = (*Recorder)(nil)

// Recorder stores every valid employee it is given.
type Recorder struct{ repo Repository }

// NewRecorder creates a Recorder backed by repo.
func NewRecorder(repo Repository) *Recorder { return &Recorder{repo: repo} }

// Process saves e.
func (r *Recorder) Process(ctx context.Context, e Employee) error {
	if err := r.repo.Save(ctx, e); err != nil {
		return fmt.Errorf("saving employee %s: %w", e.EmployeeID, err)
	}
	return nil
}

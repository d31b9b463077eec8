package detection

import (
	"errors"
	"fmt"

	"github.com/triple4t/ai-interview/internal/log"
)

// Models holds the loaded detector models. Model weights are read-only and
// shared by every session; each model serializes its own inference.
type Models struct {
	YuNet   *YuNet
	Mesh    *FaceMesh
	Cascade *Cascade
	cfg     Config
}

// LoadModels loads all three models. A failure here is fatal for the
// service: no session can start without its detectors.
func LoadModels(cfg Config) (*Models, error) {
	m := &Models{cfg: cfg}
	var err error

	if m.YuNet, err = NewYuNet(cfg); err != nil {
		return nil, fmt.Errorf("load yunet: %w", err)
	}
	if m.Mesh, err = NewFaceMesh(cfg); err != nil {
		m.Close()
		return nil, fmt.Errorf("load face mesh: %w", err)
	}
	if m.Cascade, err = NewCascade(cfg.CascadePath); err != nil {
		m.Close()
		return nil, fmt.Errorf("load cascade: %w", err)
	}

	log.Info("detector models loaded", "yunet", cfg.YuNetPath, "mesh", cfg.MeshPath, "cascade", cfg.CascadePath)
	return m, nil
}

// Adapter returns a new detector adapter over the shared models. Each
// session takes its own.
func (m *Models) Adapter() *Adapter {
	return NewAdapter(m.YuNet, m.Mesh, m.Cascade, m.cfg)
}

// Close releases every loaded model
func (m *Models) Close() error {
	var errs []error
	if m.YuNet != nil {
		errs = append(errs, m.YuNet.Close())
	}
	if m.Mesh != nil {
		errs = append(errs, m.Mesh.Close())
	}
	if m.Cascade != nil {
		errs = append(errs, m.Cascade.Close())
	}
	return errors.Join(errs...)
}

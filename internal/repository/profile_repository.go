package repository

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/edubot-api/internal/models"
)

const profilePath = "/perfil/"

// ProfileRepository reads the authenticated student's profile.
type ProfileRepository struct {
	backend *BackendClient
	logger  *zap.Logger
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(backend *BackendClient, logger *zap.Logger) *ProfileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileRepository{backend: backend, logger: logger}
}

type backendProfile struct {
	ID     models.FlexibleID `json:"id"`
	Nombre string            `json:"nombre"`
	Cedula string            `json:"cedula"`
}

// GetProfile returns nil without error when the backend does not answer with a profile.
func (r *ProfileRepository) GetProfile(ctx context.Context, token string) (*models.StudentProfile, error) {
	resp, err := r.backend.get(ctx, profilePath, token)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		r.logger.Warn("profile fetch returned non-2xx", zap.Int("status", resp.Status))
		return nil, nil
	}

	var wire backendProfile
	if !decodeObject(resp.Body, &wire) {
		r.logger.Warn("profile payload is not an object")
		return nil, nil
	}
	return &models.StudentProfile{ID: string(wire.ID), Name: wire.Nombre, Cedula: wire.Cedula}, nil
}

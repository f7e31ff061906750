package api

import (
	"context"

	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/report"
)

// FileService reads results and evidence straight from their directories.
type FileService struct {
	resultsDir string
	store      *artifact.Store
}

// NewFileService serves the Allure results in resultsDir and the evidence in store.
func NewFileService(resultsDir string, store *artifact.Store) *FileService {
	return &FileService{resultsDir: resultsDir, store: store}
}

func (s *FileService) ListResults(ctx context.Context) ([]report.TestResult, error) {
	return report.LoadResults(s.resultsDir)
}

func (s *FileService) GetResult(ctx context.Context, id string) (report.TestResult, error) {
	return report.LoadResult(s.resultsDir, id)
}

func (s *FileService) ListArtifacts(ctx context.Context) ([]artifact.Artifact, error) {
	return s.store.List()
}

func (s *FileService) GetArtifact(ctx context.Context, name string) (artifact.Artifact, error) {
	return s.store.Get(name)
}

func (s *FileService) DeleteArtifact(ctx context.Context, name string) error {
	return s.store.Delete(name)
}

func (s *FileService) ReadArtifact(ctx context.Context, name string) ([]byte, error) {
	return s.store.Read(name)
}

var _ Service = (*FileService)(nil)

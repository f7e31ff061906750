// Package api serves recorded run results, evidence and the live event feed.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/govqa/portalharness/internal/artifact"
	"github.com/govqa/portalharness/internal/relay"
	"github.com/govqa/portalharness/internal/report"
)

// Service is what the report server reads from.
type Service interface {
	ListResults(ctx context.Context) ([]report.TestResult, error)
	GetResult(ctx context.Context, id string) (report.TestResult, error)
	ListArtifacts(ctx context.Context) ([]artifact.Artifact, error)
	GetArtifact(ctx context.Context, name string) (artifact.Artifact, error)
	ReadArtifact(ctx context.Context, name string) ([]byte, error)
	DeleteArtifact(ctx context.Context, name string) error
}

// ResultSummary is one row of the result listing.
type ResultSummary struct {
	UUID       string        `json:"uuid"`
	Name       string        `json:"name"`
	Suite      string        `json:"suite"`
	Feature    string        `json:"feature,omitempty"`
	Story      string        `json:"story,omitempty"`
	Status     report.Status `json:"status"`
	Message    string        `json:"message,omitempty"`
	Start      time.Time     `json:"start"`
	DurationMS int64         `json:"duration_ms"`
	Steps      int           `json:"steps"`
}

func summarize(r report.TestResult) ResultSummary {
	s := ResultSummary{
		UUID:       r.UUID,
		Name:       r.Name,
		Suite:      r.Label("suite"),
		Feature:    r.Label("feature"),
		Story:      r.Label("story"),
		Status:     r.Status,
		Start:      time.UnixMilli(r.Start).UTC(),
		DurationMS: r.Duration().Milliseconds(),
		Steps:      len(r.Steps),
	}
	if r.StatusDetails != nil {
		s.Message = r.StatusDetails.Message
	}
	return s
}

type healthOutput struct {
	Body struct {
		Status        string `json:"status"`
		RelayClients  int    `json:"relay_clients"`
		DroppedEvents int64  `json:"dropped_events"`
	}
}

type listResultsOutput struct {
	Body struct {
		Results []ResultSummary `json:"results"`
	}
}

type resultIDInput struct {
	ResultID string `path:"uuid" doc:"Result uuid"`
}

type getResultOutput struct {
	Body report.TestResult
}

type listArtifactsOutput struct {
	Body struct {
		Artifacts []artifactView `json:"artifacts"`
	}
}

type artifactView struct {
	artifact.Artifact
	URL string `json:"url"`
}

type artifactOutput struct {
	Body artifactView
}

type deleteArtifactOutput struct {
	Body struct {
		Status string `json:"status"`
		Name   string `json:"name"`
	}
}

func viewOf(a artifact.Artifact) artifactView {
	return artifactView{Artifact: a, URL: "/api/v1/artifacts/" + a.Name + "/image"}
}

type artifactNameInput struct {
	Name string `path:"name" doc:"Evidence name without extension"`
}

type artifactImageOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// NewServer builds the report API. broker may be nil, in which case the
// live event routes are not mounted.
func NewServer(svc Service, broker *relay.Broker) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig(apiTitle, "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	docs := docsPage(broker != nil)
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write(docs); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	if broker != nil {
		router.Get("/api/v1/events", relay.SSEHandler(broker))
		router.Get("/api/v1/events/ws", relay.WSHandler(broker))
	}

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if broker != nil {
				out.Body.RelayClients = broker.ClientCount()
				out.Body.DroppedEvents = broker.Dropped()
			}
			return out, nil
		})

	registerResultHandlers(api, svc)
	registerArtifactHandlers(api, svc)

	return router
}

func registerResultHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "list-results", Method: http.MethodGet, Path: "/api/v1/results", Summary: "List case results, newest first", Tags: []string{"Results"}},
		func(ctx context.Context, input *struct {
			Suite   string `query:"suite" doc:"Only results of this scenario"`
			Status  string `query:"status" doc:"Only results with this status (passed, failed, broken, skipped)"`
			Feature string `query:"feature" doc:"Only results tagged with this feature"`
		}) (*listResultsOutput, error) {
			results, err := svc.ListResults(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listResultsOutput{}
			out.Body.Results = []ResultSummary{}
			for _, r := range results {
				if input.Suite != "" && r.Label("suite") != input.Suite {
					continue
				}
				if input.Status != "" && string(r.Status) != input.Status {
					continue
				}
				if input.Feature != "" && r.Label("feature") != input.Feature {
					continue
				}
				out.Body.Results = append(out.Body.Results, summarize(r))
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-result", Method: http.MethodGet, Path: "/api/v1/results/{uuid}", Summary: "Get one case result with its steps", Tags: []string{"Results"}},
		func(ctx context.Context, input *resultIDInput) (*getResultOutput, error) {
			r, err := svc.GetResult(ctx, input.ResultID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &getResultOutput{Body: r}, nil
		})
}

func registerArtifactHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "list-artifacts", Method: http.MethodGet, Path: "/api/v1/artifacts", Summary: "List evidence screenshots", Tags: []string{"Evidence"}},
		func(ctx context.Context, input *struct{}) (*listArtifactsOutput, error) {
			arts, err := svc.ListArtifacts(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listArtifactsOutput{}
			out.Body.Artifacts = make([]artifactView, 0, len(arts))
			for _, a := range arts {
				out.Body.Artifacts = append(out.Body.Artifacts, viewOf(a))
			}
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-artifact", Method: http.MethodGet, Path: "/api/v1/artifacts/{name}", Summary: "Get evidence metadata", Tags: []string{"Evidence"}},
		func(ctx context.Context, input *artifactNameInput) (*artifactOutput, error) {
			a, err := svc.GetArtifact(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			return &artifactOutput{Body: viewOf(a)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-artifact", Method: http.MethodDelete, Path: "/api/v1/artifacts/{name}", Summary: "Delete evidence", Tags: []string{"Evidence"}},
		func(ctx context.Context, input *artifactNameInput) (*deleteArtifactOutput, error) {
			if err := svc.DeleteArtifact(ctx, input.Name); err != nil {
				return nil, mapErr(err)
			}
			out := &deleteArtifactOutput{}
			out.Body.Status = "deleted"
			out.Body.Name = input.Name
			return out, nil
		})

	huma.Register(api, huma.Operation{
		OperationID: "get-artifact-image",
		Method:      http.MethodGet,
		Path:        "/api/v1/artifacts/{name}/image",
		Summary:     "Get evidence image",
		Tags:        []string{"Evidence"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Evidence image",
				Content: map[string]*huma.MediaType{
					artifact.ContentType: {
						Schema: &huma.Schema{Type: "string", Format: "binary"},
					},
				},
			},
		},
	}, func(ctx context.Context, input *artifactNameInput) (*artifactImageOutput, error) {
		data, err := svc.ReadArtifact(ctx, input.Name)
		if err != nil {
			return nil, mapErr(err)
		}
		return &artifactImageOutput{ContentType: artifact.ContentType, Body: data}, nil
	})
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, artifact.ErrInvalidName), errors.Is(err, report.ErrInvalidID):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, artifact.ErrNotFound), errors.Is(err, report.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout(err.Error())
	}
	return huma.Error500InternalServerError(err.Error())
}

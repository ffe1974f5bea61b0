package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"certissuer/internal/archive"
	"certissuer/internal/candidate"
	"certissuer/internal/document"
	"certissuer/internal/records"
	"certissuer/internal/render"
	"certissuer/internal/stage"
)

// Renderer draws the certificate pages.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (render.Output, error)
}

// Assembler builds the signed PDF.
type Assembler interface {
	Assemble(ctx context.Context, images []string, dir string) (document.Signed, error)
}

// Uploader archives the signed PDF.
type Uploader interface {
	Upload(ctx context.Context, path string, rec candidate.Record) (archive.Result, error)
}

type renderStage struct {
	renderer Renderer
	bundle   render.Bundle
	baseURL  string
}

func (s *renderStage) Name() string       { return "render" }
func (s *renderStage) State() stage.State { return stage.StateRendering }

func (s *renderStage) Execute(ctx context.Context, job *stage.Job) error {
	url, err := candidate.VerificationURL(s.baseURL, job.Code)
	if err != nil {
		return err
	}
	job.VerificationURL = url
	out, err := s.renderer.Render(ctx, render.Request{
		Record:          job.Record,
		Code:            job.Code,
		VerificationURL: url,
		Dir:             job.Workspace,
	})
	if err != nil {
		return err
	}
	job.Images = out.Paths()
	return nil
}

func (s *renderStage) HealthCheck(context.Context) stage.Health {
	files := map[string]string{
		"slide1": s.bundle.Slide1,
		"slide2": s.bundle.Slide2,
		"logo":   s.bundle.Logo,
	}
	for family, path := range s.bundle.Fonts {
		files["font "+string(family)] = path
	}
	for key, path := range s.bundle.Syllabi {
		files["syllabus "+key] = path
	}
	labels := make([]string, 0, len(files))
	for label := range files {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if _, err := os.Stat(files[label]); err != nil {
			return stage.Unhealthy(s.Name(), fmt.Sprintf("%s unavailable: %v", label, err))
		}
	}
	return stage.Healthy(s.Name())
}

type assembleStage struct {
	assembler Assembler
	material  document.Material
}

func (s *assembleStage) Name() string       { return "assemble" }
func (s *assembleStage) State() stage.State { return stage.StateAssembling }

func (s *assembleStage) Execute(ctx context.Context, job *stage.Job) error {
	signed, err := s.assembler.Assemble(ctx, job.Images, job.Workspace)
	if err != nil {
		return err
	}
	job.DocumentPath = signed.Path
	return nil
}

func (s *assembleStage) HealthCheck(context.Context) stage.Health {
	if _, err := document.LoadSigner(s.material); err != nil {
		return stage.Unhealthy(s.Name(), err.Error())
	}
	return stage.Healthy(s.Name())
}

type uploadStage struct {
	uploader Uploader
}

func (s *uploadStage) Name() string       { return "upload" }
func (s *uploadStage) State() stage.State { return stage.StateUploading }
func (s *uploadStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.Name())
}

func (s *uploadStage) Execute(ctx context.Context, job *stage.Job) error {
	res, err := s.uploader.Upload(ctx, job.DocumentPath, job.Record)
	// A failed permission grant still leaves an object behind.
	job.ObjectID = res.ObjectID
	job.FolderID = res.FolderID
	if err != nil {
		return err
	}
	job.ArchiveURL = res.URL
	return nil
}

type recordStage struct {
	store  records.Store
	issuer string
	now    func() time.Time
}

func (s *recordStage) Name() string       { return "record" }
func (s *recordStage) State() stage.State { return stage.StateRecording }

func (s *recordStage) Execute(ctx context.Context, job *stage.Job) error {
	job.IssuedAt = s.now()
	return s.store.InsertCompleted(ctx, job.Record, records.Completion{
		Code:       job.Code,
		ArchiveURL: job.ArchiveURL,
		ObjectID:   job.ObjectID,
		IssuedAt:   job.IssuedAt,
		Issuer:     s.issuer,
	})
}

func (s *recordStage) HealthCheck(ctx context.Context) stage.Health {
	if err := s.store.Ping(ctx); err != nil {
		return stage.Unhealthy(s.Name(), err.Error())
	}
	return stage.Healthy(s.Name())
}

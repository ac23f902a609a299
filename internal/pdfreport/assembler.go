// Package pdfreport captures staged route maps and assembles them into the
// final PDF document, releasing staged artifacts only once the document has
// been persisted.
package pdfreport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"github.com/routemaps/routemaps/internal/pipeline"
)

// ErrNoArtifacts means the batch produced nothing to assemble. Batch-fatal.
var ErrNoArtifacts = errors.New("no map artifacts to assemble")

const (
	pageImageWidth  = 180 // mm, A4 portrait minus margins
	pageImageHeight = 126 // mm, keeps the 1366x960 capture ratio
)

// EngineStarter acquires a capture engine for one batch.
type EngineStarter func(ctx context.Context) (CaptureEngine, error)

// Assembler builds the report document out of staged map artifacts. The
// capture engine is acquired once per batch and released unconditionally,
// error paths included.
type Assembler struct {
	startEngine EngineStarter
	stagingDir  string
	logger      zerolog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(startEngine EngineStarter, stagingDir string, logger zerolog.Logger) *Assembler {
	return &Assembler{startEngine: startEngine, stagingDir: stagingDir, logger: logger}
}

// Build runs the two-phase assembly: stage a raster capture per artifact and
// lay out the document, then persist it, and only on successful persistence
// release every staged file. A capture failure drops that route's section
// and the batch continues; a persistence failure leaves all staged files in
// place for diagnosis.
func (a *Assembler) Build(ctx context.Context, day time.Time, artifacts []*pipeline.MapArtifact) (*pipeline.ReportResult, error) {
	if len(artifacts) == 0 {
		return nil, ErrNoArtifacts
	}

	engine, err := a.startEngine(ctx)
	if err != nil {
		return nil, fmt.Errorf("start capture engine: %w", err)
	}
	defer func() {
		if err := engine.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("capture engine close failed")
		}
	}()

	result := &pipeline.ReportResult{}
	pdf := fpdf.New("P", "mm", "A4", "")
	addLegendPage(pdf, day)

	var staged []string

	for _, artifact := range artifacts {
		shot, err := a.capture(ctx, engine, artifact)
		if err != nil {
			a.logger.Error().Err(err).Str("route_id", artifact.RouteID).Msg("capture failed, section dropped")
			result.CaptureFailed = append(result.CaptureFailed, pipeline.CaptureFailure{
				RouteID: artifact.RouteID,
				Reason:  err.Error(),
			})
			continue
		}

		shotPath := filepath.Join(a.stagingDir, fmt.Sprintf("screenshot_%s.png", pipeline.SafeRouteID(artifact.RouteID)))
		if err := os.WriteFile(shotPath, shot, 0o644); err != nil {
			return nil, fmt.Errorf("stage screenshot for %s: %w", artifact.RouteID, err)
		}
		staged = append(staged, shotPath)

		addRouteSection(pdf, artifact, shot)
		a.logger.Debug().Str("route_id", artifact.RouteID).Msg("section added")
	}

	path := filepath.Join(a.stagingDir, fmt.Sprintf("route_map_report_%s.pdf", day.Format("2006-01-02")))
	if err := pdf.OutputFileAndClose(path); err != nil {
		// Staged maps and screenshots are deliberately left behind so the
		// run can be diagnosed or retried.
		return nil, fmt.Errorf("persist report: %w", err)
	}
	result.Path = path

	a.release(artifacts, staged)

	a.logger.Info().
		Str("path", path).
		Int("sections", len(artifacts)-len(result.CaptureFailed)).
		Int("capture_failures", len(result.CaptureFailed)).
		Msg("report persisted")

	return result, nil
}

func (a *Assembler) capture(ctx context.Context, engine CaptureEngine, artifact *pipeline.MapArtifact) ([]byte, error) {
	abs, err := filepath.Abs(artifact.HTMLPath)
	if err != nil {
		return nil, err
	}
	return engine.Capture(ctx, "file://"+abs)
}

// release deletes every staged file, including maps whose capture failed;
// nothing will consume them once the document exists.
func (a *Assembler) release(artifacts []*pipeline.MapArtifact, screenshots []string) {
	for _, artifact := range artifacts {
		if err := os.Remove(artifact.HTMLPath); err != nil {
			a.logger.Warn().Err(err).Str("path", artifact.HTMLPath).Msg("could not remove staged map")
		}
	}
	for _, path := range screenshots {
		if err := os.Remove(path); err != nil {
			a.logger.Warn().Err(err).Str("path", path).Msg("could not remove staged screenshot")
		}
	}
}

func addLegendPage(pdf *fpdf.Fpdf, day time.Time) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 12, fmt.Sprintf("Route Maps Report - %s", day.Format("2006-01-02")), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, "Map Legend", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	rows := [][2]string{
		{"Symbol", "Description"},
		{"Blue Line", "Recommended Route"},
		{"Red Line", "Actual Route Taken"},
		{"Numbered Markers (Blue)", "Journey Nodes"},
		{"'C' Marker (Red)", "Charging Station"},
		{"'D' Marker (Green)", "Depot"},
		{"'S' Marker (Purple)", "Actual Route Start"},
		{"'E' Marker (Orange)", "Actual Route End"},
	}

	for i, row := range rows {
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 12)
			pdf.SetFillColor(128, 128, 128)
			pdf.SetTextColor(255, 255, 255)
		} else {
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetFillColor(211, 211, 211)
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.CellFormat(60, 8, row[0], "1", 0, "C", true, 0, "")
		pdf.CellFormat(100, 8, row[1], "1", 1, "L", i == 0, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
}

// addRouteSection appends one route's page. Each section starts on its own
// page, so the page break sits between routes and never after the last one.
func addRouteSection(pdf *fpdf.Fpdf, artifact *pipeline.MapArtifact, shot []byte) {
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	title := fmt.Sprintf("Route %s", artifact.RouteID)
	if artifact.RouteAlias != "" {
		title = fmt.Sprintf("Route %s (%s)", artifact.RouteID, artifact.RouteAlias)
	}
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	imageName := "map_" + pipeline.SafeRouteID(artifact.RouteID)
	pdf.RegisterImageOptionsReader(imageName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(shot))
	pdf.ImageOptions(imageName, 15, pdf.GetY(), pageImageWidth, pageImageHeight, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}

// Ensure Assembler satisfies the pipeline contract.
var _ pipeline.ReportBuilder = (*Assembler)(nil)

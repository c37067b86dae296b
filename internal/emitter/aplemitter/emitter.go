package aplemitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	genspec "github.com/mark3labs/openapi2dyalog/internal/spec"
)

// Output layout.
const (
	SourceDir   = "APLSource"
	TagsDir     = "_tags"
	ModelsDir   = "models"
	ClientClass = "Client"
)

// Options controls how the APL emitter writes a project.
type Options struct {
	OutDir      string // required; target directory of the generated project
	SpecPath    string // local input document, copied into OutDir; URLs are skipped
	TemplateDir string // optional directory of template overrides
	Force       bool   // write into a non-empty directory that was not generated by us
	DryRun      bool   // don't write, only plan
	Logger      *slog.Logger
}

// FileStatus tells what writing a planned file does to the disk.
type FileStatus string

const (
	StatusCreate    FileStatus = "create"
	StatusUpdate    FileStatus = "update"
	StatusUnchanged FileStatus = "unchanged"
)

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
	Status  FileStatus
}

// Result returns the planned files in path order.
type Result struct {
	Planned []PlannedFile
	Written int
}

// Emit renders sm into a Dyalog APL project. One function file is written
// per operation under APLSource/_tags/<tag>/, one class per model under
// APLSource/models/, plus the client class, utilities, version function and
// README. Files whose content is unchanged are left alone.
func Emit(ctx context.Context, sm *genspec.ServiceModel, opts Options) (*Result, error) {
	if sm == nil {
		return nil, fmt.Errorf("aplemitter: nil ServiceModel")
	}
	if sm.Document == nil {
		return nil, fmt.Errorf("aplemitter: ServiceModel has no document context")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("aplemitter: OutDir is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("aplemitter: resolve output directory: %w", err)
	}

	r, err := newRenderer(opts.TemplateDir)
	if err != nil {
		return nil, err
	}
	files, err := renderFiles(ctx, r, sm, opts.SpecPath)
	if err != nil {
		return nil, err
	}

	if err := validateOutputDirectory(abs, opts.Force); err != nil {
		return nil, err
	}

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	res := &Result{Planned: make([]PlannedFile, 0, len(rels))}
	for _, rel := range rels {
		res.Planned = append(res.Planned, PlannedFile{
			RelPath: rel,
			Size:    len(files[rel]),
			Mode:    0o644,
			Status:  fileStatus(filepath.Join(abs, filepath.FromSlash(rel)), files[rel]),
		})
	}
	if opts.DryRun {
		return res, nil
	}

	for _, pf := range res.Planned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pf.Status == StatusUnchanged {
			log.Debug("unchanged", "path", pf.RelPath)
			continue
		}
		if err := writeFileAtomic(abs, pf.RelPath, files[pf.RelPath], pf.Mode); err != nil {
			return nil, fmt.Errorf("aplemitter: write file %s: %w", pf.RelPath, err)
		}
		res.Written++
		log.Info("generated", "path", pf.RelPath, "status", string(pf.Status))
	}
	return res, nil
}

// renderFiles builds the output tree in memory, keyed by slash separated
// relative path.
func renderFiles(ctx context.Context, r *renderer, sm *genspec.ServiceModel, specPath string) (map[string][]byte, error) {
	files := map[string][]byte{}
	put := func(rel string, content []byte) error {
		if _, dup := files[rel]; dup {
			return fmt.Errorf("aplemitter: two artifacts map to %s", rel)
		}
		files[rel] = content
		return nil
	}
	dc := sm.Document

	for _, g := range sm.Groups {
		for _, op := range g.Operations {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			c := genspec.ForOperation(op).Set("namespace", dc.Namespace)
			out, err := r.render(EndpointTemplate, c)
			if err != nil {
				return nil, fmt.Errorf("operation %s: %w", op.ID, err)
			}
			if err := put(path.Join(SourceDir, TagsDir, g.Dir, op.ID+".aplf"), out); err != nil {
				return nil, err
			}
		}
	}

	for _, m := range sm.Models {
		out, err := r.render(ModelTemplate, genspec.ForModel(m))
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		if err := put(path.Join(SourceDir, ModelsDir, m.ClassName+".aplc"), out); err != nil {
			return nil, err
		}
	}

	tags := make([]string, 0, len(sm.Groups))
	for _, g := range sm.Groups {
		tags = append(tags, g.Dir)
	}
	specFile := specFileName(specPath)
	docs := []struct {
		rel, tmpl string
		ctx       *genspec.Context
	}{
		{path.Join(SourceDir, ClientClass+".aplc"), ClientTemplate,
			genspec.ForDocument(dc).Set("class_name", ClientClass).Set("tags", tags)},
		{path.Join(SourceDir, "utils.apln"), UtilsTemplate, genspec.ForDocument(dc)},
		{path.Join(SourceDir, "Version.aplf"), VersionTemplate, genspec.ForDocument(dc)},
		{"README.md", ReadmeTemplate,
			genspec.ForDocument(dc).Set("class_name", ClientClass).Set("spec_file", specFile)},
	}
	for _, d := range docs {
		out, err := r.render(d.tmpl, d.ctx)
		if err != nil {
			return nil, err
		}
		if err := put(d.rel, out); err != nil {
			return nil, err
		}
	}

	if specFile != "" {
		raw, err := os.ReadFile(specPath)
		if err != nil {
			return nil, fmt.Errorf("aplemitter: copy input document: %w", err)
		}
		if err := put(specFile, raw); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// specFileName returns the base name the input document is copied to, or
// "" when it is not a local file.
func specFileName(specPath string) string {
	specPath = strings.TrimSpace(specPath)
	if specPath == "" {
		return ""
	}
	if u, err := url.Parse(specPath); err == nil && u.Scheme != "" && u.Host != "" {
		return ""
	}
	return filepath.Base(specPath)
}

func fileStatus(fullPath string, content []byte) FileStatus {
	existing, err := os.ReadFile(fullPath)
	switch {
	case err != nil:
		return StatusCreate
	case bytes.Equal(existing, content):
		return StatusUnchanged
	}
	return StatusUpdate
}

// validateOutputDirectory accepts a missing or empty directory and a
// directory holding a previous generation. Anything else needs force.
func validateOutputDirectory(absPath string, force bool) error {
	stat, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", absPath, err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("output path %q is not a directory", absPath)
	}
	if force {
		return nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("cannot read output directory %q: %w", absPath, err)
	}
	if len(entries) == 0 {
		return nil
	}
	if st, err := os.Stat(filepath.Join(absPath, SourceDir)); err == nil && st.IsDir() {
		return nil
	}
	return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", absPath)
}

// writeFileAtomic writes a file using a temporary file and a rename.
func writeFileAtomic(baseDir, relPath string, content []byte, mode os.FileMode) error {
	fullPath := filepath.Join(baseDir, filepath.FromSlash(relPath))
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure target directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-aplemitter-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", relPath, err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
		}
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(content); err != nil {
		return fmt.Errorf("write content to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, fullPath); err != nil {
		return fmt.Errorf("atomic rename %s to %s: %w", tmpPath, fullPath, err)
	}
	success = true
	return nil
}

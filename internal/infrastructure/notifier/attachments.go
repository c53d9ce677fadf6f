package notifier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/LavaJover/shvark-settlement-service/internal/domain"
)

const defaultMaxAttachmentSize = 20 << 20

// FileAttachmentSource resolves course ids to files registered in the
// course_files table and stored under baseDir.
type FileAttachmentSource struct {
	files   domain.CourseFileRepository
	baseDir string
	maxSize int64
	logger  *zap.Logger
}

func NewFileAttachmentSource(files domain.CourseFileRepository, baseDir string, logger *zap.Logger) *FileAttachmentSource {
	return &FileAttachmentSource{
		files:   files,
		baseDir: baseDir,
		maxSize: defaultMaxAttachmentSize,
		logger:  logger.With(zap.String("component", "attachment_source")),
	}
}

// Lookup returns one entry per registered file, and one entry with a reason
// for each course that has no usable file. Only repository failures are
// returned as errors.
func (s *FileAttachmentSource) Lookup(ctx context.Context, courseIDs []string) ([]domain.AttachmentLookup, error) {
	ids := dedupe(courseIDs)
	files, err := s.files.FindByCourseIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byCourse := make(map[string][]*domain.CourseFile, len(ids))
	for _, f := range files {
		byCourse[f.CourseID] = append(byCourse[f.CourseID], f)
	}

	var out []domain.AttachmentLookup
	for _, id := range ids {
		registered := byCourse[id]
		if len(registered) == 0 {
			out = append(out, domain.AttachmentLookup{CourseID: id, Reason: "no file registered for course"})
			continue
		}
		for _, f := range registered {
			att, err := s.load(f)
			if err != nil {
				s.logger.Warn("attachment unavailable",
					zap.String("course_id", id),
					zap.String("file", f.FileName),
					zap.Error(err),
				)
				out = append(out, domain.AttachmentLookup{CourseID: id, Reason: err.Error()})
				continue
			}
			out = append(out, domain.AttachmentLookup{CourseID: id, Attachment: att})
		}
	}
	return out, nil
}

func (s *FileAttachmentSource) load(f *domain.CourseFile) (*domain.Attachment, error) {
	path, err := s.resolve(f.StoragePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.FileName, err)
	}
	if info.Size() > s.maxSize {
		return nil, fmt.Errorf("%s is %d bytes, over the %d byte limit", f.FileName, info.Size(), s.maxSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.FileName, err)
	}

	contentType := f.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(content).String()
	}
	return &domain.Attachment{
		Filename:    f.FileName,
		Content:     content,
		ContentType: contentType,
	}, nil
}

func (s *FileAttachmentSource) resolve(storagePath string) (string, error) {
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(base, filepath.Clean("/"+storagePath))
	rel, err := filepath.Rel(base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage path %q escapes attachment directory", storagePath)
	}
	return full, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

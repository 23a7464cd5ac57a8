package course

import (
	"context"
	"strconv"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/trezcool/schoolhub/core"
	"github.com/trezcool/schoolhub/core/user"
)

var (
	// errors
	ErrNotFound    = errors.New("course not found")
	ErrIncomplete  = errors.New("add a title and at least one video")
	ErrInvalidLink = errors.New("invalid YouTube URL")
)

const (
	untitledVideo = "Untitled Video"

	maxLookups      = 4
	thumbnailsDir   = "courses"
	thumbnailWidth  = 1280
	thumbnailHeight = 720
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		// FilterCourses returns the courses published to any of targets, all of them when targets is empty.
		// Newest first.
		FilterCourses(ctx context.Context, targets []string) ([]Course, error)
	}

	// VideoInfo is the metadata of a video.
	VideoInfo struct {
		Title        string
		ThumbnailURL string
	}

	// VideoResolver looks up the metadata of a YouTube video.
	VideoResolver interface {
		Resolve(ctx context.Context, videoID string) (VideoInfo, error)
	}

	Service struct {
		repo   Repository
		videos VideoResolver
		files  core.FileStore
		logger core.Logger
	}
)

func NewService(repo Repository, videos VideoResolver, files core.FileStore, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(videos, "videos"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, videos: videos, files: files, logger: logger}
}

// Create publishes a course. The metadata of every video is looked up concurrently,
// and the first video provides the default title and thumbnail of the course.
// thumbnail is optional and is saved as a webp image.
func (svc *Service) Create(ctx context.Context, author user.User, nc NewCourse, thumbnail *core.File) (Course, error) {
	if len(nc.Links) == 0 {
		return Course{}, ErrIncomplete
	}
	ids := make([]string, 0, len(nc.Links))
	for _, link := range nc.Links {
		id, ok := VideoID(link)
		if !ok {
			return Course{}, core.NewFieldError("links", ErrInvalidLink)
		}
		ids = append(ids, id)
	}

	playlist := svc.playlist(ctx, ids)
	c := Course{
		Title:       nc.Title,
		Description: nc.Description,
		Thumbnail:   playlist[0].Thumbnail,
		Target:      nc.Target,
		Playlist:    playlist,
		CreatedBy:   author.ID,
		CreatedAt:   core.NowFunc().UTC(),
	}
	if c.Title == "" && playlist[0].Title != untitledVideo {
		c.Title = playlist[0].Title
	}
	if c.Title == "" {
		return Course{}, ErrIncomplete
	}

	if thumbnail != nil {
		stored, err := svc.files.SaveImage(ctx, thumbnailsDir, *thumbnail, thumbnailWidth, thumbnailHeight)
		if err != nil {
			return Course{}, errors.Wrap(err, "saving thumbnail")
		}
		c.Thumbnail = stored.URL
	}
	return svc.repo.CreateCourse(ctx, c)
}

// playlist resolves the videos of ids, keeping their order.
// A video whose metadata cannot be found gets a default title and thumbnail.
func (svc *Service) playlist(ctx context.Context, ids []string) []Video {
	videos := make([]Video, len(ids))
	p := pool.New().WithMaxGoroutines(maxLookups)
	for i, id := range ids {
		i, id := i, id
		p.Go(func() {
			v := Video{ID: strconv.Itoa(i + 1), VideoID: id, Title: untitledVideo, Thumbnail: ThumbnailURL(id)}
			info, err := svc.videos.Resolve(ctx, id)
			if err != nil {
				svc.logger.Warn("resolving video "+id, err)
			} else {
				if info.Title != "" {
					v.Title = info.Title
				}
				if info.ThumbnailURL != "" {
					v.Thumbnail = info.ThumbnailURL
				}
			}
			videos[i] = v
		})
	}
	p.Wait()
	return videos
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCourse(ctx, id)
}

// List returns the courses viewer can watch: guest courses when viewer is nil,
// the courses of their class for students, every course for teachers and admins.
func (svc *Service) List(ctx context.Context, viewer *user.User) ([]Course, error) {
	var filter []string
	switch {
	case viewer == nil:
		filter = []string{TargetGuest}
	case viewer.IsStudent():
		if filter = StudentTargets(*viewer); len(filter) == 0 {
			return []Course{}, nil
		}
	}
	return svc.repo.FilterCourses(ctx, filter)
}

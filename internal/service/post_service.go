// Package service holds the business operations behind the HTTP handlers.
package service

import (
	"context"
	"errors"

	"postdesk/internal/models"
	"postdesk/internal/observability"
	"postdesk/internal/repository"
)

type PostService struct {
	postRepo repository.PostRepository
	traces   *observability.TraceLayer
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{
		postRepo: postRepo,
		traces:   observability.NewTraceLayer(observability.Tracer, "postdesk"),
	}
}

func (s *PostService) ListPosts(ctx context.Context) (_ []*models.Post, err error) {
	ctx, span := s.traces.TraceServiceMethod(ctx, "PostService", "ListPosts")
	defer func() { observability.EndSpan(span, err); observability.RecordPostOperation("list", err) }()

	return s.postRepo.List(ctx)
}

// CreatePost stores a new post built field by field from in.
func (s *PostService) CreatePost(ctx context.Context, in models.PostInput) (_ *models.Post, err error) {
	ctx, span := s.traces.TraceServiceMethod(ctx, "PostService", "CreatePost")
	defer func() { observability.EndSpan(span, err); observability.RecordPostOperation("create", err) }()

	if !in.Status.Valid() {
		return nil, models.NewFieldValidationError(map[string][]string{
			"status": {"The selected status is invalid."},
		})
	}

	post := &models.Post{
		Title:    in.Title,
		Brand:    in.Brand,
		Platform: in.Platform,
		DueDate:  in.DueDate,
		Payment:  in.Payment,
		Status:   in.Status,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, id uint) (_ *models.Post, err error) {
	ctx, span := s.traces.TraceServiceMethod(ctx, "PostService", "GetPost")
	defer func() { observability.EndSpan(span, err); observability.RecordPostOperation("get", err) }()

	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return post, nil
}

// UpdatePost loads the post and applies patch to it.
func (s *PostService) UpdatePost(ctx context.Context, id uint, patch models.PostPatch) (*models.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ApplyUpdate(ctx, post, patch)
}

// ApplyUpdate copies each field present in patch onto the loaded post and
// writes it back. An empty patch returns post without a write.
func (s *PostService) ApplyUpdate(ctx context.Context, post *models.Post, patch models.PostPatch) (_ *models.Post, err error) {
	ctx, span := s.traces.TraceServiceMethod(ctx, "PostService", "UpdatePost")
	defer func() { observability.EndSpan(span, err); observability.RecordPostOperation("update", err) }()

	if patch.Status != nil && !patch.Status.Valid() {
		return nil, models.NewFieldValidationError(map[string][]string{
			"status": {"The selected status is invalid."},
		})
	}
	if patch.Empty() {
		return post, nil
	}

	if patch.Title != nil {
		post.Title = *patch.Title
	}
	if patch.Brand != nil {
		post.Brand = *patch.Brand
	}
	if patch.Platform != nil {
		post.Platform = *patch.Platform
	}
	if patch.DueDate != nil {
		post.DueDate = *patch.DueDate
	}
	if patch.Payment != nil {
		post.Payment = *patch.Payment
	}
	if patch.Status != nil {
		post.Status = *patch.Status
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, notFound(err)
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, id uint) (err error) {
	ctx, span := s.traces.TraceServiceMethod(ctx, "PostService", "DeletePost")
	defer func() { observability.EndSpan(span, err); observability.RecordPostOperation("delete", err) }()

	if _, err := s.postRepo.GetByID(ctx, id); err != nil {
		return notFound(err)
	}
	return notFound(s.postRepo.Delete(ctx, id))
}

// notFound turns the repository sentinel into the 404 envelope error.
func notFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrPostNotFound) {
		return models.NewNotFoundError("Post")
	}
	return err
}

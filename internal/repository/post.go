// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"log/slog"

	"postdesk/internal/models"
	"postdesk/internal/observability"

	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

// postUpdateColumns are the columns an update may write. updated_at is added by gorm.
var postUpdateColumns = []string{"title", "brand", "platform", "due_date", "payment", "status"}

// postRepository implements PostRepository
type postRepository struct {
	db      *gorm.DB
	metrics *observability.DatabaseMetrics
	log     *observability.RepoLogger
	traces  *observability.TraceLayer
}

// NewPostRepository creates a new post repository. logger may be nil.
func NewPostRepository(db *gorm.DB, logger *slog.Logger) PostRepository {
	return &postRepository{
		db:      db,
		metrics: observability.NewDatabaseMetrics("posts"),
		log:     observability.NewRepoLogger("posts", logger),
		traces:  observability.NewTraceLayer(observability.Tracer, db.Dialector.Name()),
	}
}

// begin starts a span and a latency timer for one repository call.
func (r *postRepository) begin(ctx context.Context, op string) (context.Context, trace.Span, func()) {
	ctx, span := r.traces.TraceRepositoryMethod(ctx, op, "posts")
	return ctx, span, r.metrics.TrackQuery(op)
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, span, done := r.begin(ctx, "create")
	defer func() { done(); observability.EndSpan(span, err) }()

	if err = r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (_ *models.Post, err error) {
	ctx, span, done := r.begin(ctx, "get")
	defer func() { done(); observability.EndSpan(span, err) }()

	var post models.Post
	if err = r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrPostNotFound
		}
		r.log.LogError(ctx, err, "get")
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context) (_ []*models.Post, err error) {
	ctx, span, done := r.begin(ctx, "list")
	defer func() { done(); observability.EndSpan(span, err) }()

	posts := []*models.Post{}
	if err = r.db.WithContext(ctx).Order("id ASC").Find(&posts).Error; err != nil {
		r.log.LogError(ctx, err, "list")
		return nil, err
	}
	return posts, nil
}

// Update writes the business fields of post and refreshes post.UpdatedAt.
// A row removed since it was read yields ErrPostNotFound.
func (r *postRepository) Update(ctx context.Context, post *models.Post) (err error) {
	ctx, span, done := r.begin(ctx, "update")
	defer func() { done(); observability.EndSpan(span, err) }()

	result := r.db.WithContext(ctx).Model(post).Select(postUpdateColumns).Updates(post)
	if err = result.Error; err != nil {
		r.log.LogError(ctx, err, "update")
		return err
	}
	if result.RowsAffected == 0 {
		return models.ErrPostNotFound
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": post.ID})
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) (err error) {
	ctx, span, done := r.begin(ctx, "delete")
	defer func() { done(); observability.EndSpan(span, err) }()

	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if err = result.Error; err != nil {
		r.log.LogError(ctx, err, "delete")
		return err
	}
	if result.RowsAffected == 0 {
		return models.ErrPostNotFound
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id})
	return nil
}

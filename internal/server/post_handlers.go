package server

import (
	"postdesk/internal/models"
	"postdesk/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// decodePayload parses the request body. A body that is not a JSON object
// gets a 400 and errResponseWritten.
func (s *Server) decodePayload(c *fiber.Ctx) (validation.PostPayload, error) {
	payload, err := validation.DecodePostPayload(c.Body())
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewBadRequestError("The request body must be a JSON object."), false)
		return nil, errResponseWritten
	}
	return payload, nil
}

// ListPosts handles GET /api/posts
// @Summary List posts
// @Description Returns every post ordered by id.
// @ID getPostsList
// @Tags posts
// @Produce json
// @Success 200 {array} models.Post
// @Failure 500 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	posts, err := s.postService.ListPosts(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// StorePost handles POST /api/posts
// @Summary Create a post
// @Description Stores a new post. All fields are required.
// @ID storePost
// @Tags posts
// @Accept json
// @Produce json
// @Param request body object{title=string,brand=string,platform=string,due_date=string,payment=number,status=string} true "Post fields"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) StorePost(c *fiber.Ctx) error {
	payload, err := s.decodePayload(c)
	if err != nil {
		return nil
	}

	in, err := validation.ValidateCreate(payload)
	if err != nil {
		return s.respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), *in)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// ShowPost handles GET /api/posts/:id
// @Summary Get a post
// @Description Returns one post by id.
// @ID getPostById
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) ShowPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Updates the fields present in the body; absent fields keep their value.
// @ID updatePost
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{title=string,brand=string,platform=string,due_date=string,payment=number,status=string} true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	// A missing post is reported before the body is looked at.
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	payload, err := s.decodePayload(c)
	if err != nil {
		return nil
	}

	patch, err := validation.ValidateUpdate(payload)
	if err != nil {
		return s.respondError(c, err)
	}

	post, err = s.postService.ApplyUpdate(c.UserContext(), post, *patch)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// DestroyPost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Permanently removes a post.
// @ID deletePost
// @Tags posts
// @Param id path int true "Post ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DestroyPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

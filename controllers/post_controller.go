package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/orchestrator"
	"github.com/cppla/postboard/session"
	"github.com/cppla/postboard/utils"
)

const (
	msgPostCreated = "Post created successfully!"
	msgPostUpdated = "Post updated successfully!"
	msgPostDeleted = "Post deleted successfully!"
)

// PostController manages post mutations inside a session.
type PostController struct {
	sessions *session.Registry
}

// NewPostController creates a new PostController instance.
func NewPostController(sessions *session.Registry) *PostController {
	return &PostController{sessions: sessions}
}

// GetPost reads one post from the session's local state.
func (p *PostController) GetPost(ctx *gin.Context) {
	s, ok := lookupSession(ctx, p.sessions)
	if !ok {
		return
	}
	id, ok := postID(ctx)
	if !ok {
		return
	}
	post, found := s.Get(id)
	if !found {
		utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
		return
	}
	utils.Success(ctx, post)
}

// CreatePost validates and inserts a new post.
func (p *PostController) CreatePost(ctx *gin.Context) {
	s, ok := lookupSession(ctx, p.sessions)
	if !ok {
		return
	}
	var req models.PostInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	post, err := s.Create(req)
	if err != nil {
		validationError(ctx, err)
		return
	}
	utils.Notify(ctx, http.StatusCreated, msgPostCreated, post)
}

// UpdatePost edits title and body. Unknown ids are a silent no-op.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	s, ok := lookupSession(ctx, p.sessions)
	if !ok {
		return
	}
	id, ok := postID(ctx)
	if !ok {
		return
	}
	var req models.PostInput
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	post, changed, err := s.Update(id, req)
	if err != nil {
		validationError(ctx, err)
		return
	}
	if !changed {
		utils.Success(ctx, gin.H{"changed": false})
		return
	}
	utils.Notify(ctx, http.StatusOK, msgPostUpdated, gin.H{"changed": true, "post": post})
}

// DeletePost removes a post once the caller confirmed with ?confirm=true.
func (p *PostController) DeletePost(ctx *gin.Context) {
	s, ok := lookupSession(ctx, p.sessions)
	if !ok {
		return
	}
	id, ok := postID(ctx)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(ctx.Query("confirm"))
	answered, removed := s.Delete(id, orchestrator.ConfirmFunc(func(string) bool { return confirmed }))
	if !answered {
		utils.Respond(ctx, http.StatusOK, 0, orchestrator.DeletePrompt, gin.H{"confirmed": false, "removed": false})
		return
	}
	if !removed {
		utils.Success(ctx, gin.H{"confirmed": true, "removed": false})
		return
	}
	utils.Notify(ctx, http.StatusOK, msgPostDeleted, gin.H{"confirmed": true, "removed": true})
}

func postID(ctx *gin.Context) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("postId"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid post id")
		return 0, false
	}
	return id, true
}

func validationError(ctx *gin.Context, err error) {
	var ve *orchestrator.ValidationError
	if errors.As(err, &ve) {
		code := 40022
		if ve.Field == "body" {
			code = 40023
		}
		utils.Error(ctx, http.StatusBadRequest, code, ve.Message)
		return
	}
	utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to apply change")
}

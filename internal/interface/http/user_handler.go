package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/pilabs/users-api/internal/application"
	"github.com/pilabs/users-api/internal/domain/entity"
	repo "github.com/pilabs/users-api/internal/domain/repository"
	"github.com/pilabs/users-api/pkg/apperrors"
	"github.com/pilabs/users-api/pkg/response"
	"github.com/pilabs/users-api/pkg/validation"
)

// UserService is the slice of the application service the handlers call.
type UserService interface {
	Create(ctx context.Context, in userapp.CreateUserInput) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	List(ctx context.Context, f repo.ListFilter, p repo.Pagination) (*userapp.ListResult, error)
	Update(ctx context.Context, id int64, patch repo.UserPatch) (*entity.User, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, q string, size int) ([]map[string]any, error)
}

type UserHandler struct {
	Svc    UserService
	Logger *logrus.Logger
}

func NewUserHandler(svc UserService, logger *logrus.Logger) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger}
}

type createUserRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name" binding:"required,min=2,max=100"`
	Age   *int   `json:"age" binding:"omitempty,gte=1,lte=150"`
}

// nullableInt records whether the field appeared in the payload at all and
// whether it was an explicit null. That distinction drives partial updates.
type nullableInt struct {
	Present bool
	Valid   bool
	Value   int
}

func (n *nullableInt) UnmarshalJSON(b []byte) error {
	n.Present = true
	if string(b) == "null" {
		return nil
	}
	if err := json.Unmarshal(b, &n.Value); err != nil {
		return err
	}
	n.Valid = true
	return nil
}

type updateUserRequest struct {
	Name     *string     `json:"name" binding:"omitempty,min=2,max=100"`
	Age      nullableInt `json:"age"`
	IsActive *bool       `json:"isActive"`
}

func (h *UserHandler) fail(c *gin.Context, err error) {
	code, status, details := apperrors.Classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		// no internal detail leaks past this point
		response.Error(c, status, code, "internal server error", nil)
		return
	}
	response.Error(c, status, code, err.Error(), details)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user id", map[string]string{"id": "must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.Create(c.Request.Context(), userapp.CreateUserInput{
		Email: req.Email,
		Name:  req.Name,
		Age:   req.Age,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, u, "user created")
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "")
}

func (h *UserHandler) List(c *gin.Context) {
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	} else if limit > 100 {
		limit = 100
	}

	var f repo.ListFilter
	if v := c.Query("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid filter", map[string]string{"isActive": "must be a boolean value"})
			return
		}
		f.IsActive = &b
	}
	if v := c.Query("ageMin"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid filter", map[string]string{"ageMin": "must be numeric"})
			return
		}
		f.AgeMin = &n
	}
	if v := c.Query("ageMax"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid filter", map[string]string{"ageMax": "must be numeric"})
			return
		}
		f.AgeMax = &n
	}
	f.Search = c.Query("search")

	res, err := h.Svc.List(c.Request.Context(), f, repo.Pagination{Page: page, Limit: limit})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Paginated(c, res.Users, response.NewPagination(res.Page, res.Limit, res.Total))
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", validation.ToDetails(err))
		return
	}
	if req.Age.Present && req.Age.Valid && (req.Age.Value < 1 || req.Age.Value > 150) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", map[string]string{"age": "must be between 1 and 150"})
		return
	}

	patch := repo.UserPatch{Name: req.Name, IsActive: req.IsActive}
	if req.Age.Present {
		if req.Age.Valid {
			v := req.Age.Value
			patch.Age = &v
		} else {
			patch.ClearAge = true
		}
	}

	u, err := h.Svc.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, u, "user updated")
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "missing query", map[string]string{"q": "is required"})
		return
	}
	size := queryInt(c, "size", 10)
	hits, err := h.Svc.Search(c.Request.Context(), q, size)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, hits, "")
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

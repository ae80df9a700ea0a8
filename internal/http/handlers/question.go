package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/questionbank/internal/data/aggregates"
	"github.com/yungbote/questionbank/internal/domain/question"
	"github.com/yungbote/questionbank/internal/http/response"
	"github.com/yungbote/questionbank/internal/platform/logger"
)

const maxPageSize = 1000

// QuestionBank is the engine surface the HTTP collaborators use.
type QuestionBank interface {
	FetchByUID(ctx context.Context, uid string) (*question.Question, error)
	Save(ctx context.Context, q *question.Question, isNew bool) error
	Delete(ctx context.Context, uid string) error
	List(ctx context.Context, opts aggregates.ListOptions) ([]question.Question, error)
	Count(ctx context.Context, f aggregates.Filter) (int64, error)
	Search(ctx context.Context, text string, limit, offset int) ([]question.Question, error)
	ListTags(ctx context.Context) ([]string, error)
	Export(ctx context.Context, uids []string) ([]question.Question, error)
	Stats(ctx context.Context) (aggregates.Stats, error)
	MigrationRuns(ctx context.Context, limit int) ([]question.MigrationRun, error)
}

type QuestionHandler struct {
	log      *logger.Logger
	bank     QuestionBank
	pageSize int
}

func NewQuestionHandler(log *logger.Logger, bank QuestionBank, pageSize int) *QuestionHandler {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &QuestionHandler{
		log:      log.With("handler", "QuestionHandler"),
		bank:     bank,
		pageSize: pageSize,
	}
}

type listResponse struct {
	Questions []question.Question `json:"questions"`
	Total     int64               `json:"total"`
}

type searchResponse struct {
	Questions []question.Question `json:"questions"`
}

type exportRequest struct {
	UIDs []string `json:"uids"`
}

// GET /api/questions?limit=&offset=&tag=&difficulty=
func (h *QuestionHandler) List(c *gin.Context) {
	limit, offset, err := h.paging(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}
	f := aggregates.Filter{
		Tags:       queryTags(c),
		Difficulty: strings.TrimSpace(c.Query("difficulty")),
	}
	qs, err := h.bank.List(c.Request.Context(), aggregates.ListOptions{Filter: f, Limit: limit, Offset: offset})
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	total, err := h.bank.Count(c.Request.Context(), f)
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, listResponse{Questions: qs, Total: total})
}

// GET /api/questions/search?q=&limit=&offset=
func (h *QuestionHandler) Search(c *gin.Context) {
	limit, offset, err := h.paging(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}
	qs, err := h.bank.Search(c.Request.Context(), c.Query("q"), limit, offset)
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, searchResponse{Questions: qs})
}

// GET /api/questions/:uid
func (h *QuestionHandler) Get(c *gin.Context) {
	uid := strings.TrimSpace(c.Param("uid"))
	q, err := h.bank.FetchByUID(c.Request.Context(), uid)
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	if q == nil {
		response.RespondError(c, http.StatusNotFound, string(question.CodeNotFound), errors.New("question not found"))
		return
	}
	response.RespondOK(c, gin.H{"question": q})
}

// POST /api/questions
func (h *QuestionHandler) Create(c *gin.Context) {
	var q question.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}
	if err := h.bank.Save(c.Request.Context(), &q, true); err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"question": q})
}

// PUT /api/questions/:uid
func (h *QuestionHandler) Update(c *gin.Context) {
	uid := strings.TrimSpace(c.Param("uid"))
	var q question.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}
	if q.UID != "" && q.UID != uid {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, errors.New("uid in body does not match path"))
		return
	}
	q.UID = uid
	if err := h.bank.Save(c.Request.Context(), &q, false); err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"question": q})
}

// DELETE /api/questions/:uid
func (h *QuestionHandler) Delete(c *gin.Context) {
	uid := strings.TrimSpace(c.Param("uid"))
	if err := h.bank.Delete(c.Request.Context(), uid); err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": uid})
}

// GET /api/tags
func (h *QuestionHandler) Tags(c *gin.Context) {
	tags, err := h.bank.ListTags(c.Request.Context())
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"tags": tags})
}

// GET /api/migrations?limit=
func (h *QuestionHandler) Migrations(c *gin.Context) {
	limit, _, err := h.paging(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}
	runs, err := h.bank.MigrationRuns(c.Request.Context(), limit)
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"migrations": runs})
}

// GET /api/stats
func (h *QuestionHandler) Stats(c *gin.Context) {
	st, err := h.bank.Stats(c.Request.Context())
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// POST /api/export
func (h *QuestionHandler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, response.CodeInvalidRequest, err)
		return
	}
	qs, err := h.bank.Export(c.Request.Context(), req.UIDs)
	if err != nil {
		response.RespondQuestionError(c, err)
		return
	}
	response.RespondOK(c, searchResponse{Questions: qs})
}

func (h *QuestionHandler) paging(c *gin.Context) (int, int, error) {
	limit := h.pageSize
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, errors.New("limit must be a non-negative integer")
		}
		limit = n
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset := 0
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
		offset = n
	}
	return limit, offset, nil
}

// queryTags accepts repeated tag= parameters and comma-separated tags=.
func queryTags(c *gin.Context) []string {
	var out []string
	out = append(out, c.QueryArray("tag")...)
	for _, raw := range c.QueryArray("tags") {
		out = append(out, strings.Split(raw, ",")...)
	}
	return question.NormalizeTags(out)
}

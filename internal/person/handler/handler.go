package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/peoplebook/peoplebook/internal/person"
	"github.com/peoplebook/peoplebook/internal/person/repository"
	"github.com/peoplebook/peoplebook/internal/person/service"
	"github.com/peoplebook/peoplebook/pkg/logger"
)

// Middleware lists the optional handlers around the people routes. Limit
// runs on every route; on mutating routes Auth runs first so the limiter
// can key on the token subject. Nil entries are skipped.
type Middleware struct {
	Auth  gin.HandlerFunc
	Limit gin.HandlerFunc
}

func (m Middleware) chain(withAuth bool) []gin.HandlerFunc {
	var out []gin.HandlerFunc
	if withAuth && m.Auth != nil {
		out = append(out, m.Auth)
	}
	if m.Limit != nil {
		out = append(out, m.Limit)
	}
	return out
}

// RegisterPersonRoutes mounts the people API.
func RegisterPersonRoutes(r gin.IRouter, svc *service.Service, mw Middleware) {
	h := &personHandler{svc: svc}
	g := r.Group("/api/people", mw.chain(false)...)

	g.GET("", h.find)
	g.GET("/one", h.findOne)
	g.GET("/burrito", h.queryChain)
	g.GET("/count", h.count)
	g.GET("/:id", h.findByID)

	w := r.Group("/api/people", mw.chain(true)...)
	w.POST("/sample", h.createSample)
	w.POST("", h.save)
	w.POST("/batch", h.createMany)
	w.POST("/:id/hamburger", h.editThenSave)
	w.PATCH("/by-name/:name/age", h.updateAge)
	w.DELETE("/:id", h.removeByID)
	w.DELETE("", h.removeMany)
	w.POST("/export", h.export)
	w.POST("/import", h.importSnapshot)
}

type personHandler struct {
	svc *service.Service
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, person.ErrInvalidID),
		errors.Is(err, person.ErrValidation),
		errors.Is(err, person.ErrInvalidQuery):
		status = http.StatusBadRequest
	case service.IsNotFound(err), errors.Is(err, service.ErrNoSnapshots):
		status = http.StatusNotFound
	case repository.IsDuplicateKey(err):
		status = http.StatusConflict
	case errors.Is(err, service.ErrSnapshotsDisabled):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": service.ErrNotFound.Error()})
}

func (h *personHandler) createSample(c *gin.Context) {
	p, err := h.svc.CreateAndSavePerson(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *personHandler) save(c *gin.Context) {
	var p person.Person
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusCreated
	if !p.ID.IsZero() {
		status = http.StatusOK
	}
	out, err := h.svc.Save(c.Request.Context(), &p)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, out)
}

func (h *personHandler) createMany(c *gin.Context) {
	var people []*person.Person
	if err := c.ShouldBindJSON(&people); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.svc.CreateManyPeople(c.Request.Context(), people)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// queryFilter reads name and food from the query string. Absent parameters
// leave the field unconstrained; "?name=" matches only empty names.
func queryFilter(c *gin.Context) person.Filter {
	var f person.Filter
	if v, ok := c.GetQuery("name"); ok {
		f.Name = &v
	}
	if v, ok := c.GetQuery("food"); ok {
		f.FavoriteFood = &v
	}
	return f
}

// find runs a chained query built from the query string, e.g.
// ?food=burrito&sort=name&limit=2&select=-age.
func (h *personHandler) find(c *gin.Context) {
	q := h.svc.Find(queryFilter(c))
	if s := c.Query("sort"); s != "" {
		q.Sort(s)
	}
	for _, p := range []struct {
		key string
		set func(int64) *person.Query
	}{{"limit", q.Limit}, {"skip", q.Skip}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + p.key + ": " + raw})
			return
		}
		p.set(n)
	}
	if s := c.Query("select"); s != "" {
		q.Select(s)
	}
	out, err := q.Exec(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *personHandler) findOne(c *gin.Context) {
	p, err := h.svc.FindOneByFood(c.Request.Context(), c.Query("food"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *personHandler) findByID(c *gin.Context) {
	p, err := h.svc.FindPersonByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *personHandler) editThenSave(c *gin.Context) {
	p, err := h.svc.FindEditThenSave(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *personHandler) updateAge(c *gin.Context) {
	p, err := h.svc.FindAndUpdate(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *personHandler) removeByID(c *gin.Context) {
	p, err := h.svc.RemoveByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if p == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *personHandler) removeMany(c *gin.Context) {
	res, err := h.svc.RemoveManyPeople(c.Request.Context(), c.Query("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *personHandler) queryChain(c *gin.Context) {
	out, err := h.svc.QueryChain(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *personHandler) count(c *gin.Context) {
	n, err := h.svc.Count(c.Request.Context(), queryFilter(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *personHandler) export(c *gin.Context) {
	info, err := h.svc.Export(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

func (h *personHandler) importSnapshot(c *gin.Context) {
	out, err := h.svc.Import(c.Request.Context(), c.Query("key"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"imported": len(out)})
}

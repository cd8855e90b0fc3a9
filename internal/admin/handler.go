// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/notesbot/internal/core"
	"github.com/carterperez-dev/notesbot/internal/identity"
	"github.com/carterperez-dev/notesbot/internal/note"
)

const defaultQueueLimit = 50

type NoteStats interface {
	CountByStatus(ctx context.Context) (map[note.Status]int, error)
	ListQueued(ctx context.Context, category note.Category, limit int) ([]note.Summary, error)
}

type RoleCounter interface {
	CountByRole(ctx context.Context) (identity.RoleCounts, error)
}

type Handler struct {
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	redisPing  func(ctx context.Context) error
	dbPing     func(ctx context.Context) error
	notes      NoteStats
	roles      RoleCounter
	validate   *validator.Validate
}

type HandlerConfig struct {
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
	DBPing     func(ctx context.Context) error
	Notes      NoteStats
	Roles      RoleCounter
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		redisPing:  cfg.RedisPing,
		dbPing:     cfg.DBPing,
		notes:      cfg.Notes,
		roles:      cfg.Roles,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Get("/queue", h.GetQueue)
	})
}

// GetSystemStats reports note counts per status and identities per role
// next to the health of the stores.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	byStatus, err := h.notes.CountByStatus(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	byRole, err := h.roles.CountByRole(ctx)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	notes := NoteCounts{ByStatus: make(map[string]int, len(byStatus))}
	for status, n := range byStatus {
		notes.ByStatus[string(status)] = n
		notes.Total += n
	}
	notes.Queued = byStatus[note.StatusQueued]

	identities := IdentityCounts{
		ByRole: make(map[string]int, len(byRole)),
		Total:  byRole.Total(),
	}
	for role, n := range byRole {
		identities.ByRole[string(role)] = n
	}

	core.OK(w, SystemStatsResponse{
		Notes:      notes,
		Identities: identities,
		Database: DatabaseStatus{
			Healthy: ping(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: ping(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntimeStats(),
	})
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

type queueQuery struct {
	Category string `validate:"omitempty,oneof=for_health for_repose"`
	Limit    int    `validate:"min=1,max=500"`
}

// GetQueue lists queued notes oldest first without their names.
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	q := queueQuery{
		Category: r.URL.Query().Get("category"),
		Limit:    defaultQueueLimit,
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			core.BadRequest(w, "limit must be a number")
			return
		}
		q.Limit = limit
	}

	if err := h.validate.Struct(q); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	items, err := h.notes.ListQueued(r.Context(), note.Category(q.Category), q.Limit)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	if items == nil {
		items = []note.Summary{}
	}

	core.OK(w, QueueResponse{Items: items, Count: len(items)})
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}

type SystemStatsResponse struct {
	Notes      NoteCounts     `json:"notes"`
	Identities IdentityCounts `json:"identities"`
	Database   DatabaseStatus `json:"database"`
	Redis      RedisStatus    `json:"redis"`
	Runtime    RuntimeStats   `json:"runtime"`
}

type NoteCounts struct {
	Total    int            `json:"total"`
	Queued   int            `json:"queued"`
	ByStatus map[string]int `json:"by_status"`
}

type IdentityCounts struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
}

type QueueResponse struct {
	Items []note.Summary `json:"items"`
	Count int            `json:"count"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

package core

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

// RouterDeps bundles the collaborators the HTTP layer needs. Handlers only see
// interfaces so tests can swap in fakes.
type RouterDeps struct {
	Auth     AuthService
	Users    UserRepository
	Events   AuthEventRepository
	Sessions SessionRegistry
	Hasher   Hasher
	Queue    RedisClient
	Metrics  *MetricsService
	Policy   *Policy
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, store *sessions.CookieStore, deps RouterDeps) *gin.Engine {
	startedAt := time.Now()
	r := gin.Default()

	// Global middleware: origin/CORS -> session -> CSRF -> authorize
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))
	r.Use(CSRFMiddleware(cfg, store))
	r.Use(AuthorizeMiddleware(deps.Policy, deps.Sessions))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/auth/login", func(c *gin.Context) {
			var req struct {
				Username string `form:"username" json:"username"`
				Password string `form:"password" json:"password"`
			}
			// Accepts form posts and JSON bodies; content type decides.
			if err := c.ShouldBind(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
				return
			}

			ctx := c.Request.Context()
			principal, err := deps.Auth.Authenticate(ctx, req.Username, req.Password)
			if err != nil {
				if errors.Is(err, ErrInvalidCredentials) {
					PublishAuthEvent(ctx, deps.Queue, AuthEvent{Kind: EventLoginFailure, Username: req.Username, RemoteAddr: c.ClientIP()})
					respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password")
					return
				}
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "authentication backend unavailable")
				return
			}

			token, err := deps.Sessions.Create(ctx, principal)
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create session")
				return
			}

			sessionAny, _ := c.Get("session")
			sess, _ := sessionAny.(*sessions.Session)
			if sess == nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
				return
			}

			csrfToken, err := generateCSRFToken()
			if err != nil {
				_ = deps.Sessions.Destroy(ctx, token)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue csrf token")
				return
			}

			// reset session values (simple rotation); the rotated session gets
			// a fresh CSRF token so the header below stays valid.
			sess.Values = map[interface{}]interface{}{}
			sess.Values[sessionTokenKey] = token
			sess.Values[csrfTokenKey] = csrfToken
			applySessionOptions(cfg, sess)
			if err := sess.Save(c.Request, c.Writer); err != nil {
				_ = deps.Sessions.Destroy(ctx, token)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
				return
			}
			c.Writer.Header().Set("X-CSRF-Token", csrfToken)

			PublishAuthEvent(ctx, deps.Queue, AuthEvent{Kind: EventLoginSuccess, Username: principal.Username, RemoteAddr: c.ClientIP()})
			c.JSON(http.StatusOK, gin.H{"user": gin.H{
				"username":    principal.Username,
				"authorities": principal.Authorities,
			}})
		})

		logout := func(c *gin.Context) {
			ctx := c.Request.Context()
			sessionAny, _ := c.Get("session")
			sess, _ := sessionAny.(*sessions.Session)

			username := ""
			if principal := CurrentPrincipal(c); principal != nil {
				username = principal.Username
			}

			if sess != nil {
				if token, _ := sess.Values[sessionTokenKey].(string); token != "" {
					if err := deps.Sessions.Destroy(ctx, token); err != nil {
						respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to invalidate session")
						return
					}
				}
				sess.Values = map[interface{}]interface{}{}
				applySessionOptions(cfg, sess)
				sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
				if err := sess.Save(c.Request, c.Writer); err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
					return
				}
			}

			if username != "" {
				PublishAuthEvent(ctx, deps.Queue, AuthEvent{Kind: EventLogout, Username: username, RemoteAddr: c.ClientIP()})
			}
			c.String(http.StatusOK, "Logout success")
		}
		api.POST("/auth/logout", logout)
		api.GET("/auth/logout", logout)

		api.GET("/users/me", func(c *gin.Context) {
			principal := CurrentPrincipal(c)
			if principal == nil {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			c.JSON(http.StatusOK, principal)
		})

		api.GET("/public/info", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service": "rim-api",
				"status":  "ok",
				"time":    time.Now().UTC(),
			})
		})

		admin := api.Group("/admin")
		{
			admin.POST("/users", func(c *gin.Context) {
				var req struct {
					Username    string   `json:"username"`
					Password    string   `json:"password"`
					Role        string   `json:"role"`
					Authorities []string `json:"authorities"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
					return
				}
				req.Username = strings.TrimSpace(req.Username)
				req.Role = strings.TrimSpace(req.Role)
				if req.Username == "" || req.Password == "" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
					return
				}
				if req.Role == "" {
					req.Role = "user"
				}
				if req.Role != "user" && req.Role != "admin" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
					return
				}

				hash, err := deps.Hasher.Hash(req.Password)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
					return
				}
				ctx := c.Request.Context()
				id, err := deps.Users.Create(ctx, req.Username, hash, req.Role, req.Authorities)
				if err != nil {
					if errors.Is(err, ErrUsernameTaken) {
						respondError(c, http.StatusConflict, "CONFLICT", "username already exists")
						return
					}
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
					return
				}

				record, err := deps.Users.FindByUsername(ctx, req.Username)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load created user")
					return
				}

				c.JSON(http.StatusCreated, gin.H{
					"id":          id,
					"username":    record.Username,
					"role":        record.Role,
					"authorities": record.Authorities,
					"created_at":  record.CreatedAt,
				})
			})

			admin.GET("/users", func(c *gin.Context) {
				page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
					return
				}
				ctx := c.Request.Context()
				items, total, err := deps.Users.List(ctx, page, perPage)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
					return
				}
				c.JSON(http.StatusOK, gin.H{
					"items":       items,
					"page":        page,
					"per_page":    perPage,
					"total_items": total,
					"total_pages": calcTotalPages(total, perPage),
				})
			})

			admin.POST("/users/bulk", func(c *gin.Context) {
				fileHeader, err := c.FormFile("file")
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "file field must contain a CSV upload")
					return
				}
				file, err := fileHeader.Open()
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "failed to open uploaded file")
					return
				}
				defer file.Close()

				reader := csv.NewReader(file)
				records, err := reader.ReadAll()
				if err != nil || len(records) == 0 {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "failed to parse CSV")
					return
				}
				header := records[0]
				if len(header) < 2 || strings.ToLower(strings.TrimSpace(header[0])) != "username" || strings.ToLower(strings.TrimSpace(header[1])) != "password" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "header must be username,password")
					return
				}

				type failedRow struct {
					RowNumber int    `json:"row_number"`
					Username  string `json:"username"`
					Reason    string `json:"reason"`
				}
				var failed []failedRow
				created := 0

				ctx := c.Request.Context()
				for i, row := range records[1:] {
					rowNumber := i + 2 // header is row 1
					if len(row) < 2 {
						failed = append(failed, failedRow{RowNumber: rowNumber, Username: "", Reason: "INVALID_ROW"})
						continue
					}
					username := strings.TrimSpace(row[0])
					password := row[1]
					if username == "" || password == "" {
						failed = append(failed, failedRow{RowNumber: rowNumber, Username: username, Reason: "VALIDATION_ERROR"})
						continue
					}
					hash, err := deps.Hasher.Hash(password)
					if err != nil {
						failed = append(failed, failedRow{RowNumber: rowNumber, Username: username, Reason: "INTERNAL_ERROR"})
						continue
					}
					if _, err := deps.Users.Create(ctx, username, hash, "user", nil); err != nil {
						reason := "UNKNOWN_ERROR"
						if errors.Is(err, ErrUsernameTaken) {
							reason = "USERNAME_ALREADY_EXISTS"
						}
						failed = append(failed, failedRow{RowNumber: rowNumber, Username: username, Reason: reason})
						continue
					}
					created++
				}

				c.JSON(http.StatusOK, gin.H{
					"created_count": created,
					"failed_count":  len(failed),
					"failed_rows":   failed,
				})
			})

			admin.GET("/events", func(c *gin.Context) {
				page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
					return
				}
				ctx := c.Request.Context()
				items, total, err := deps.Events.List(ctx, page, perPage)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch events")
					return
				}
				c.JSON(http.StatusOK, gin.H{
					"items":       items,
					"page":        page,
					"per_page":    perPage,
					"total_items": total,
					"total_pages": calcTotalPages(total, perPage),
				})
			})

			metrics := admin.Group("/metrics")
			{
				metrics.GET("/overview", func(c *gin.Context) {
					ctx := c.Request.Context()
					queueMetrics, workers, err := deps.Metrics.Overview(ctx)
					if err != nil {
						respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load metrics")
						return
					}
					c.JSON(http.StatusOK, gin.H{
						"queues":  queueMetrics,
						"workers": workers,
					})
				})

				metrics.GET("/queues", func(c *gin.Context) {
					ctx := c.Request.Context()
					queueMetrics, err := deps.Metrics.Queue(ctx)
					if err != nil {
						respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load queue metrics")
						return
					}
					c.JSON(http.StatusOK, queueMetrics)
				})

				metrics.GET("/workers", func(c *gin.Context) {
					ctx := c.Request.Context()
					workers, err := deps.Metrics.Workers(ctx)
					if err != nil {
						respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load workers")
						return
					}
					c.JSON(http.StatusOK, gin.H{"workers": workers})
				})

				metrics.GET("/workers/:id", func(c *gin.Context) {
					ctx := c.Request.Context()
					id := c.Param("id")
					hb, err := deps.Metrics.WorkerByID(ctx, id)
					if err != nil {
						if errors.Is(err, redis.Nil) {
							respondError(c, http.StatusNotFound, "NOT_FOUND", "worker not found")
							return
						}
						respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load worker")
						return
					}
					c.JSON(http.StatusOK, hb)
				})
			}

			admin.GET("/system/status", func(c *gin.Context) {
				ctx := c.Request.Context()
				st, err := CollectSystemStatus(ctx, deps.Metrics, startedAt)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load system status")
					return
				}
				c.JSON(http.StatusOK, st)
			})
		}
	}

	return r
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

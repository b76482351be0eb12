package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tracklight/internal/auth"
	authdomain "github.com/smallbiznis/tracklight/internal/auth/domain"
	"github.com/smallbiznis/tracklight/internal/auth/session"
	"github.com/smallbiznis/tracklight/internal/authorization"
	"github.com/smallbiznis/tracklight/internal/config"
	"github.com/smallbiznis/tracklight/internal/identity"
	"github.com/smallbiznis/tracklight/internal/observability"
	obslogger "github.com/smallbiznis/tracklight/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tracklight/internal/observability/metrics"
	"github.com/smallbiznis/tracklight/internal/organization"
	organizationdomain "github.com/smallbiznis/tracklight/internal/organization/domain"
	"github.com/smallbiznis/tracklight/internal/project"
	projectdomain "github.com/smallbiznis/tracklight/internal/project/domain"
	"github.com/smallbiznis/tracklight/internal/providers/email"
	"github.com/smallbiznis/tracklight/internal/recurring"
	recurringdomain "github.com/smallbiznis/tracklight/internal/recurring/domain"
	"github.com/smallbiznis/tracklight/internal/template"
	templatedomain "github.com/smallbiznis/tracklight/internal/template/domain"
	"github.com/smallbiznis/tracklight/internal/timeentry"
	timeentrydomain "github.com/smallbiznis/tracklight/internal/timeentry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	session.Module,
	identity.Module,
	email.Module,
	organization.Module,
	project.Module,
	timeentry.Module,
	recurring.Module,
	template.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(log, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	authsvc  authdomain.Service
	users    authdomain.Repository
	sessions *session.Manager
	authzSvc authorization.Service
	resolver identity.Resolver
	mailer   email.Provider
	log      *zap.Logger

	organizationSvc organizationdomain.Service
	projectSvc      projectdomain.Service
	entrySvc        timeentrydomain.Service
	recurringSvc    recurringdomain.Service
	templateSvc     templatedomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Authsvc         authdomain.Service
	Users           authdomain.Repository
	Sessions        *session.Manager
	AuthzSvc        authorization.Service
	Resolver        identity.Resolver
	Mailer          email.Provider
	Log             *zap.Logger
	OrganizationSvc organizationdomain.Service
	ProjectSvc      projectdomain.Service
	EntrySvc        timeentrydomain.Service
	RecurringSvc    recurringdomain.Service
	TemplateSvc     templatedomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authsvc:         p.Authsvc,
		users:           p.Users,
		sessions:        p.Sessions,
		authzSvc:        p.AuthzSvc,
		resolver:        p.Resolver,
		mailer:          p.Mailer,
		log:             p.Log.Named("http.server"),
		organizationSvc: p.OrganizationSvc,
		projectSvc:      p.ProjectSvc,
		entrySvc:        p.EntrySvc,
		recurringSvc:    p.RecurringSvc,
		templateSvc:     p.TemplateSvc,
	}

	s.registerAuthRoutes()
	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/register", s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
	auth.POST("/forgot", s.Forgot)
	auth.POST("/reset", s.ResetPassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Projects --------
	api.GET("/projects", s.ListProjects)
	api.POST("/projects", s.CreateProject)
	api.GET("/projects/:id", s.GetProject)
	api.PATCH("/projects/:id", s.UpdateProject)
	api.DELETE("/projects/:id", s.DeleteProject)
	api.POST("/projects/:id/archive", s.ArchiveProject)
	api.GET("/projects/:id/members", s.ListProjectMembers)
	api.DELETE("/projects/:id/members/:userId", s.RemoveProjectMember)

	api.GET("/projects/:id/invitations", s.ListProjectInvitations)
	api.POST("/projects/:id/invitations", s.InviteToProject)
	api.DELETE("/projects/:id/invitations/:invitationId", s.CancelProjectInvitation)
	api.POST("/invitations/:token/accept", s.AcceptProjectInvitation)

	api.GET("/projects/:id/tasks", s.ListTasks)
	api.POST("/projects/:id/tasks", s.CreateTask)
	api.PATCH("/projects/:id/tasks/:taskId", s.UpdateTask)
	api.DELETE("/projects/:id/tasks/:taskId", s.DeleteTask)

	api.GET("/favorites", s.ListFavorites)
	api.PUT("/projects/:id/favorite", s.AddFavorite)
	api.DELETE("/projects/:id/favorite", s.RemoveFavorite)

	// -------- Time entries --------
	api.GET("/entries", s.ListEntries)
	api.POST("/entries", s.CreateEntry)
	api.PATCH("/entries/:id", s.UpdateEntry)
	api.DELETE("/entries/:id", s.DeleteEntry)

	api.POST("/timer/start", s.StartTimer)
	api.POST("/timer/stop", s.StopTimer)
	api.GET("/timer", s.RunningTimer)

	api.GET("/entries/:id/comments", s.ListComments)
	api.POST("/entries/:id/comments", s.AddComment)
	api.DELETE("/comments/:id", s.DeleteComment)

	api.GET("/reports/summary", s.Summary)

	// -------- Recurring entries --------
	api.GET("/recurring", s.ListRecurring)
	api.POST("/recurring", s.CreateRecurring)
	api.PATCH("/recurring/:id", s.UpdateRecurring)
	api.DELETE("/recurring/:id", s.DeleteRecurring)

	// -------- Templates --------
	api.GET("/templates", s.ListTemplates)
	api.POST("/templates", s.CreateTemplate)
	api.PATCH("/templates/:id", s.UpdateTemplate)
	api.DELETE("/templates/:id", s.DeleteTemplate)
	api.POST("/templates/:id/instantiate", s.InstantiateTemplate)

	// -------- Organizations --------
	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations/current", s.CurrentOrganization)
	api.DELETE("/organizations/current",
		s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationDelete),
		s.DeleteOrganization)
	api.GET("/organizations/members",
		s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberView),
		s.ListOrganizationMembers)
	api.PATCH("/organizations/members/:userId",
		s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberUpdate),
		s.ChangeMemberRole)
	api.DELETE("/organizations/members/:userId", s.RemoveOrganizationMember)
	api.GET("/organizations/invitations",
		s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionInvitationView),
		s.ListOrganizationInvitations)
	api.POST("/organizations/invitations",
		s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionInvitationCreate),
		s.InviteToOrganization)
	api.DELETE("/organizations/invitations/:id",
		s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionInvitationCancel),
		s.CancelOrganizationInvitation)
	api.POST("/org-invitations/:token/accept", s.AcceptOrganizationInvitation)
}

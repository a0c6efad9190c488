package backer

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/fundkit/handler"
	"github.com/dmitrymomot/fundkit/svc/auth"
	"github.com/dmitrymomot/fundkit/svc/project"
)

type createProjectRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	GoalAmount  decimal.Decimal `json:"goalAmount"`
	EndDate     date            `json:"endDate"`
	ImageURL    string          `json:"imageUrl"`
}

func (s *service) listProjects(ctx handler.Context, _ struct{}) handler.Response {
	list, err := s.catalog.Refresh(ctx)
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(newProjectViews(list, s.now()))
}

func (s *service) showProject(ctx handler.Context, _ struct{}) handler.Response {
	p, err := s.catalog.Load(ctx, chi.URLParam(ctx.Request(), "id"))
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(newProjectView(p, s.now()))
}

func (s *service) createProject(ctx handler.Context, req createProjectRequest) handler.Response {
	p, err := s.catalog.Create(ctx, project.Form{
		Title:       req.Title,
		Description: req.Description,
		GoalAmount:  req.GoalAmount,
		EndDate:     req.EndDate.Time,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(newProjectView(p, s.now()),
		handler.WithJSONStatus(http.StatusCreated),
		handler.WithJSONHeader("Location", "/projects/"+p.ID),
	)
}

func (s *service) dashboard(ctx handler.Context, _ struct{}) handler.Response {
	d, err := s.catalog.Dashboard(ctx, auth.UserFromContext(ctx))
	if err != nil {
		return s.fail(ctx, err)
	}
	return handler.JSON(d)
}

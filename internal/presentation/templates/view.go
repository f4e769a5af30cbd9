package templates

import (
	"bytes"
	"html/template"
	"time"

	json "github.com/goccy/go-json"

	"github.com/AtRiskMedia/spabook-go/internal/application/services"
	"github.com/AtRiskMedia/spabook-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/caching/querycache"
	"github.com/AtRiskMedia/spabook-go/internal/presentation/ssr"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// HealthCard is one health query as shown on a page.
type HealthCard struct {
	Key       string
	Name      string
	Status    query.Status
	Data      string
	Error     string
	Details   string
	UpdatedAt time.Time
}

// SignInForm is the state of the sign-in form.
type SignInForm struct {
	Redirect string
	Email    string
	Error    string
}

// PageData is everything a page template reads.
type PageData struct {
	Title      string
	Page       string
	Path       string
	Nonce      string
	ScriptID   string
	SignInPath string
	Auth       *session.AuthState
	Identity   *session.AuthState
	Health     []HealthCard
	SignIn     SignInForm
	State      template.JS
	Payload    *ssr.Payload
}

// BuildPageData reads the page's queries out of the request cache and
// encodes the navigation's loader results as the embedded payload.
func BuildPageData(nav *services.Navigation, cache *querycache.Cache, path, nonce string, form SignInForm) (*PageData, error) {
	data := &PageData{
		Title:      "Not found",
		Page:       services.PageNotFound,
		Path:       path,
		Nonce:      nonce,
		ScriptID:   ssr.ScriptID,
		SignInPath: config.SignInPath,
		Auth:       nav.Auth,
		SignIn:     form,
	}
	if leaf := nav.Leaf(); leaf != nil && !nav.NotFound {
		data.Title = leaf.Title
		data.Page = leaf.Page
	}

	switch data.Page {
	case services.PageHealth:
		data.Health = healthCards(cache)
	case services.PageStaff:
		var identity session.AuthState
		if err := cache.Get(services.AuthIdentityKey).Decode(&identity); err == nil {
			data.Identity = &identity
		}
		data.Health = healthCards(cache)
	case services.PageSignIn:
		applySignInMutation(&data.SignIn, nav.Snapshot)
	}

	routes := make([]ssr.RouteResult, 0, len(nav.Routes))
	for _, r := range nav.Routes {
		routes = append(routes, ssr.RouteResult{ID: r.Route.ID, Result: r.Result})
	}
	payload, err := ssr.BuildPayload(routes)
	if err != nil {
		return nil, err
	}
	encoded, err := payload.EncodeForScript()
	if err != nil {
		return nil, err
	}
	data.Payload = payload
	data.State = template.JS(encoded)
	return data, nil
}

func healthCards(cache *querycache.Cache) []HealthCard {
	return []HealthCard{
		healthCard("Server", cache.Get(services.ServerHealthKey)),
		healthCard("Database", cache.Get(services.DatabaseHealthKey)),
	}
}

func healthCard(name string, r querycache.Result) HealthCard {
	card := HealthCard{
		Key:    r.Key.String(),
		Name:   name,
		Status: r.Status,
	}
	if !r.Found {
		card.Status = query.StatusPending
		return card
	}
	card.UpdatedAt = r.UpdatedAt.UTC()
	if r.IsError() {
		if r.Err != nil {
			card.Error = r.Err.Message
			card.Details = r.Err.Details
		}
		return card
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, r.Data, "", "  "); err != nil {
		card.Data = string(r.Data)
	} else {
		card.Data = pretty.String()
	}
	return card
}

// applySignInMutation shows the latest failed sign-in, if any.
func applySignInMutation(form *SignInForm, snapshot query.Snapshot) {
	for i := len(snapshot.Mutations) - 1; i >= 0; i-- {
		m := snapshot.Mutations[i]
		if !m.MutationKey.Equal(services.SignInMutationKey) {
			continue
		}
		if m.State.Status == query.StatusError && m.State.Error != nil && form.Error == "" {
			form.Error = m.State.Error.Message
		}
		if form.Email == "" && len(m.State.Variables) > 0 {
			var vars struct {
				Email string `json:"email"`
			}
			if err := json.Unmarshal(m.State.Variables, &vars); err == nil {
				form.Email = vars.Email
			}
		}
		return
	}
}

package templates

import "html/template"

var pageTemplates = template.Must(template.New("pageRenderer").Parse(
	`{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | spabook</title>
</head>
<body data-page="{{.Page}}">
<header>
<nav>
<a href="/">Home</a>
<a href="/health">Health</a>
<a href="/staff">Staff</a>
{{if .Auth}}<form method="post" action="/auth/signout" class="signout"><button type="submit">Sign out</button></form>
{{else}}<a href="{{.SignInPath}}">Sign in</a>
{{end}}</nav>
</header>
<main id="app">
{{if eq .Page "home"}}{{template "home" .}}{{else if eq .Page "health"}}{{template "health" .}}{{else if eq .Page "staff"}}{{template "staff" .}}{{else if eq .Page "signin"}}{{template "signin" .}}{{else}}{{template "notfound" .}}{{end}}
</main>
<script id="{{.ScriptID}}" type="application/json" nonce="{{.Nonce}}">{{.State}}</script>
</body>
</html>
{{end}}` +
		`{{define "home"}}<h1>Welcome to spabook</h1>
{{if .Auth}}<p class="greeting">Signed in as <code>{{.Auth.IdentityID}}</code>.</p>
{{else}}<p class="greeting">You are browsing anonymously.</p>
{{end}}{{end}}` +
		`{{define "healthCards"}}<section class="health">
{{range .Health}}<article class="card card-{{.Status}}" data-query="{{.Key}}">
<h2>{{.Name}}</h2>
{{if eq .Status "error"}}<p class="error">{{.Error}}</p>{{if .Details}}<p class="details">{{.Details}}</p>{{end}}
{{else if eq .Status "success"}}<pre>{{.Data}}</pre>
{{else}}<p class="pending">Not loaded</p>
{{end}}{{if not .UpdatedAt.IsZero}}<p class="updated">Updated {{.UpdatedAt.Format "2006-01-02T15:04:05Z07:00"}}</p>{{end}}
</article>
{{end}}</section>
{{end}}` +
		`{{define "health"}}<h1>System health</h1>
{{template "healthCards" .}}{{end}}` +
		`{{define "staff"}}<h1>Staff</h1>
{{if .Identity}}<p class="identity">Identity <code>{{.Identity.IdentityID}}</code>, verified {{.Identity.VerifiedAt.Format "2006-01-02T15:04:05Z07:00"}}</p>{{end}}
{{template "healthCards" .}}{{end}}` +
		`{{define "signin"}}<h1>Sign in</h1>
{{if .SignIn.Error}}<p class="error" role="alert">{{.SignIn.Error}}</p>
{{end}}<form method="post" action="{{.SignInPath}}">
<input type="hidden" name="redirect" value="{{.SignIn.Redirect}}">
<label>Email <input type="email" name="email" value="{{.SignIn.Email}}" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
{{end}}` +
		`{{define "notfound"}}<h1>Not found</h1>
<p>There is no page at <code>{{.Path}}</code>.</p>
{{end}}`,
))

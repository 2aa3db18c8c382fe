// Copyright (c) 2025 IBA Hoops
//
// This file is part of courtside.
//
// courtside is licensed under the GNU Affero General Public License v3.0 (AGPL-3.0).
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package rest exposes the admin login ceremonies over HTTP.
//
// Routes:
//
//	POST /api/v1/registration/challenge  begin credential registration (identity required)
//	POST /api/v1/registration/verify     complete credential registration (identity required)
//	POST /api/v1/auth/challenge          begin login (public, rate limited)
//	POST /api/v1/auth/verify             complete login, issues a session token (public, rate limited)
//	POST /api/v1/session/validate        redeem a session token
//	GET  /health                         liveness probe
//	GET  /metrics                        Prometheus metrics (optional)
//
// Registration endpoints require a bearer identity token (HS256 JWT) issued
// by the site's existing login flow; the WebAuthn ceremony itself proves
// possession of the authenticator, the JWT proves who is enrolling it.
package rest

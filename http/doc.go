// Package http exposes a filevault.Service over HTTP.
//
// # Routes
//
//	POST   /user/subscription        register (rate limited)
//	POST   /user/apiKey/{userId}     issue a 24h API key (rate limited)
//	GET    /user/all                 list users with key and file counts
//	GET    /user                     caller profile, keys and files
//	PUT    /user                     rename the caller
//	POST   /file                     multipart upload, field "file"
//	GET    /file                     list the caller's files
//	GET    /file/{fileId}            file metadata
//	GET    /file/{fileId}/download   file bytes
//	DELETE /file/{fileId}            delete bytes, then metadata
//	GET    /healthz                  readiness
//
// Every /file route and GET/PUT /user require the X-Api-Key header. A file
// owned by someone else is reported exactly like a missing one.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{
//	    MaxUploadSize:     10 << 20,
//	    EmptyListNotFound: true,
//	    RateLimit:         http.RateLimitConfig{RequestsPerMinute: 10, Burst: 5},
//	}, service)
//	srv := &nethttp.Server{Addr: ":5173", Handler: handler.Router()}
//
// # Errors
//
// Failures are JSON bodies of the form {"error": code, "message": text}.
// HandleError maps the filevault sentinels to status codes; anything it does
// not recognise is a 500 whose text is logged but not returned.
package http

// Package filevault implements an authenticated file-hosting service with
// pluggable metadata backends and byte stores.
//
// Users register, trade their password for a 24 hour API key and then
// upload, list, download and delete files that only they can see. Each
// upload is a two-phase action: bytes are written to a FileStorage first and
// the metadata row is committed afterwards. When the commit fails the bytes
// are removed again. Deletion runs in the opposite order and keeps the
// metadata if the bytes cannot be removed.
//
// # Key Components
//
//   - Service: workflows for users, API keys and files
//   - UserRepo, APIKeyRepo, FileRepo: metadata persistence (PostgreSQL, SQLite)
//   - FileStorage: byte storage (local filesystem, S3 compatible)
//
// # Example Usage
//
//	service, err := filevault.NewService(repo, storage, filevault.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	user, err := service.Authenticate(ctx, r.Header.Get("x-api-key"))
//
//	file, err := service.Upload(ctx, user, filevault.UploadObject{
//	    Name:        "report.pdf",
//	    ContentType: "application/pdf",
//	    Size:        -1,
//	}, body)
//
// See the http package for the REST API and the database package for the
// metadata backends.
package filevault

// Package clientcli provides a client library for filevault servers.
//
// It covers registration, API key issuance and the file operations (upload,
// list, info, download, delete). Requests other than registration and key
// issuance carry the API key in the X-Api-Key header. The package includes
// profile-based configuration for managing connections to multiple servers.
//
// # Basic Usage
//
// Create a client and upload a file:
//
//	cfg := &clientcli.Config{
//		Endpoint: "http://localhost:5173",
//		APIKey:   "your-api-key",
//	}
//
//	client, err := clientcli.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath: "./diagram.png",
//	})
//
// # Errors
//
// Server errors are returned as *APIError. errors.Is matches them against
// both the package sentinels (ErrNotFound, ErrUnauthorized, ErrRateLimited)
// and the filevault sentinels named by the response's error code:
//
//	if errors.Is(err, filevault.ErrDisallowedType) {
//		// pick another file
//	}
//
// # Profile Configuration
//
// Use profiles to manage multiple server configurations:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli

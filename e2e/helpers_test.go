package e2e_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/math-dev-24/filevault/clientcli"
)

var (
	binaries       = map[string]string{}
	binaryBuildErr error
	binaryOnce     sync.Once
	sharedTempDir  string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "filevault-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if testCleanup != nil {
		testCleanup()
	}
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

// ServerConfig holds configuration for starting the filevault server.
type ServerConfig struct {
	Port          int
	DBType        string // sqlite, postgres
	DBDSN         string
	StoragePath   string
	MaxUploadSize int64 // zero keeps the server default
}

// buildBinaries compiles the server and the client once per test run.
func buildBinaries(t *testing.T) {
	t.Helper()

	binaryOnce.Do(func() {
		for _, name := range []string{"filevault", "filevault-cli"} {
			out := filepath.Join(sharedTempDir, name)
			cmd := exec.Command("go", "build", "-o", out, "./cmd/"+name)
			cmd.Dir = getProjectRoot(t)
			output, err := cmd.CombinedOutput()
			if err != nil {
				binaryBuildErr = fmt.Errorf("build %s: %w\nOutput: %s", name, err, output)
				return
			}
			binaries[name] = out
		}
	})

	if binaryBuildErr != nil {
		t.Fatalf("failed to build binaries: %v", binaryBuildErr)
	}
}

func serverBinary(t *testing.T) string {
	t.Helper()
	buildBinaries(t)
	return binaries["filevault"]
}

func cliBinary(t *testing.T) string {
	t.Helper()
	buildBinaries(t)
	return binaries["filevault-cli"]
}

// getProjectRoot returns the directory holding go.mod.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes a server config file and returns its path.
// The password endpoints are not rate limited so tests can register freely.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	var sb strings.Builder
	fmt.Fprintf(&sb, `server:
  port: %d
  shutdown_timeout: 5s
  rate_limit:
    requests_per_minute: 0
`, cfg.Port)
	if cfg.MaxUploadSize > 0 {
		fmt.Fprintf(&sb, "  max_upload_size: %d\n", cfg.MaxUploadSize)
	}
	fmt.Fprintf(&sb, `
database:
  type: %s
  dsn: "%s"

storage:
  type: filesystem
  path: "%s"

log:
  level: error
  format: json
`, cfg.DBType, cfg.DBDSN, cfg.StoragePath)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(sb.String()), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// runServerCommand runs a one-shot filevault subcommand against configPath.
func runServerCommand(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	args = append(args, "--config", configPath)
	cmd := exec.Command(serverBinary(t), args...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// startServer migrates the database and starts the filevault server.
// Returns the base URL and the config path; the server is stopped on cleanup.
func startServer(t *testing.T, cfg ServerConfig) (string, string) {
	t.Helper()

	configPath := createConfigFile(t, cfg)

	output, err := runServerCommand(t, configPath, "migrate")
	require.NoError(t, err, "migrate database: %s", output)

	cmd := exec.Command(serverBinary(t), "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	require.NoError(t, err, "start server")

	t.Cleanup(func() {
		if cmd.Process != nil {
			_ = cmd.Process.Signal(syscall.SIGTERM)
			_ = cmd.Wait()
		}
	})

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(t, baseURL, 10*time.Second)

	return baseURL, configPath
}

// waitForServer polls /healthz until it answers 200 or times out.
func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err, "find open port")

	addr := l.Addr().(*net.TCPAddr)
	port := addr.Port

	err = l.Close()
	require.NoError(t, err, "close port")

	return port
}

// account is a registered user with a live key.
type account struct {
	user   *clientcli.UserInfo
	key    string
	client *clientcli.Client
}

var accountSeq struct {
	sync.Mutex
	n int
}

// newAccount registers a fresh user and returns a client carrying its key.
func newAccount(t *testing.T, baseURL string) account {
	t.Helper()
	ctx := context.Background()

	accountSeq.Lock()
	accountSeq.n++
	n := accountSeq.n
	accountSeq.Unlock()

	const password = "correct horse battery"

	anon, err := clientcli.New(&clientcli.Config{Endpoint: baseURL})
	require.NoError(t, err)

	user, err := anon.Register(ctx, fmt.Sprintf("user%d-%d@example.com", n, time.Now().UnixNano()), fmt.Sprintf("User %d", n), password)
	require.NoError(t, err, "register")

	key, err := anon.IssueKey(ctx, user.ID, password)
	require.NoError(t, err, "issue key")

	client, err := clientcli.New(&clientcli.Config{Endpoint: baseURL, APIKey: key.Token})
	require.NoError(t, err)

	return account{user: user, key: key.Token, client: client}
}

// pngBytes returns a minimal valid PNG whose IDAT chunk carries seed, so
// different seeds give different contents.
func pngBytes(seed string) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	chunk := func(typ string, data []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(typ), data...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], 1)
	binary.BigEndian.PutUint32(ihdr[4:], 1)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 0 // grayscale
	chunk("IHDR", ihdr)
	chunk("IDAT", []byte(seed))
	chunk("IEND", nil)

	return buf.Bytes()
}

// writeFile writes content to name under dir and returns the full path.
func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

//go:build integration

package firestore

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	pconfig "github.com/crumbhouse/bakery-api/internal/platform/config"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
)

const (
	emulatorImage     = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
	emulatorReadyWait = 45 * time.Second
)

// newEmulatorProvider returns a provider bound to a Firestore emulator. An emulator already
// listening on FIRESTORE_EMULATOR_HOST is reused; otherwise one is started in docker for the
// duration of the test.
func newEmulatorProvider(t *testing.T, projectID string) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	endpoint := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST"))
	if endpoint == "" {
		endpoint = runDockerEmulator(t)
	}
	waitForEmulator(t, endpoint)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    projectID,
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func runDockerEmulator(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not available: %v", err)
	}

	id := docker(t, "run", "--detach", "--rm", "--publish", "127.0.0.1::8080", emulatorImage,
		"gcloud", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = exec.CommandContext(ctx, "docker", "rm", "--force", id).Run()
	})

	// "docker port" prints one mapping per line, e.g. 127.0.0.1:49153.
	mapping := docker(t, "port", id, "8080/tcp")
	return strings.TrimSpace(strings.SplitN(mapping, "\n", 2)[0])
}

func docker(t *testing.T, args ...string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("docker %s: %v\n%s", args[0], err, out)
	}
	return strings.TrimSpace(string(out))
}

func waitForEmulator(t *testing.T, endpoint string) {
	t.Helper()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(emulatorReadyWait)
	for {
		if conn, err := net.DialTimeout("tcp", endpoint, time.Second); err == nil {
			_ = conn.Close()
			return
		}
		select {
		case <-ticker.C:
		case <-timeout:
			t.Fatalf("firestore emulator at %s not reachable after %s", endpoint, emulatorReadyWait)
		}
	}
}

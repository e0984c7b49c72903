package authx

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestAuthCenterIntegration(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("RUN_INTEGRATION_TESTS not set to true")
	}

	cfg, err := PermissionConfigFromEnv()
	if err != nil {
		t.Fatalf("PermissionConfigFromEnv: %v", err)
	}
	identity, err := uuid.Parse(strings.TrimSpace(os.Getenv("AUTH_CENTER_TEST_USER")))
	if err != nil {
		t.Fatalf("AUTH_CENTER_TEST_USER must be a uuid: %v", err)
	}
	permission := strings.TrimSpace(os.Getenv("AUTH_CENTER_TEST_PERMISSION"))
	if permission == "" {
		t.Fatal("AUTH_CENTER_TEST_PERMISSION environment variable required")
	}

	client, err := NewPermissionClient(cfg,
		WithRetryPolicy(RetryPolicyFromEnv()),
		WithLogger(zap.NewExample()),
	)
	if err != nil {
		t.Fatalf("NewPermissionClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	allowed, err := client.Check(ctx, permission, identity)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	t.Logf("%s has %s: %v", identity, permission, allowed)
}

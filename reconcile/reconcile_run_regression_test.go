package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

func TestReconcileRunRegressions(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "contarapida_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Test Biz",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	// CreateBusiness seeds a default wallet.
	var wallet models.Wallet
	if err := db.WithContext(ctx).Where("business_id = ?", businessID).First(&wallet).Error; err != nil {
		t.Fatalf("fetch default wallet: %v", err)
	}

	date := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tagged, err := models.CreateTransaction(ctx, &models.NewTransaction{
		WalletId:        wallet.ID,
		TransactionType: models.TransactionTypeExpense,
		Amount:          decimal.NewFromInt(50),
		TransactionDate: date,
		Description:     "imported line",
		ExternalId:      "erp-1",
		Source:          "erp",
	})
	if err != nil {
		t.Fatalf("CreateTransaction(tagged): %v", err)
	}
	manual, err := models.CreateTransaction(ctx, &models.NewTransaction{
		WalletId:        wallet.ID,
		TransactionType: models.TransactionTypeDeposit,
		Amount:          decimal.NewFromInt(40),
		TransactionDate: date,
		Description:     "manual entry",
	})
	if err != nil {
		t.Fatalf("CreateTransaction(manual): %v", err)
	}

	t.Run("single record run loads full internal set", func(t *testing.T) {
		// Retrying one external record must still consider untagged
		// manual transactions as match candidates.
		txns, err := loadInternalTransactions(ctx, db, businessID, wallet.ID, RunParams{ExternalId: "erp-1"})
		if err != nil {
			t.Fatalf("loadInternalTransactions: %v", err)
		}
		if len(txns) != 2 {
			t.Fatalf("loaded %d transactions, want 2 (tagged and manual)", len(txns))
		}
		ids := map[int]bool{}
		for _, txn := range txns {
			ids[txn.ID] = true
		}
		if !ids[tagged.ID] || !ids[manual.ID] {
			t.Fatalf("loaded ids %v, want both %d and %d", ids, tagged.ID, manual.ID)
		}
	})

	t.Run("business lock held until released", func(t *testing.T) {
		release, err := utils.BusinessLock(ctx, businessID, "ReconcileRun", "reconcile", "test")
		if err != nil {
			t.Fatalf("BusinessLock: %v", err)
		}
		if _, err := utils.BusinessLock(ctx, businessID, "ReconcileRun", "reconcile", "test"); err == nil {
			t.Fatalf("second lock for same business should fail while first is held")
		}
		release()
		release, err = utils.BusinessLock(ctx, businessID, "ReconcileRun", "reconcile", "test")
		if err != nil {
			t.Fatalf("BusinessLock after release: %v", err)
		}
		release()
	})

	t.Run("lookup by external id distinguishes missing from errors", func(t *testing.T) {
		found, err := models.GetTransactionByExternalId(ctx, businessID, "erp-1")
		if err != nil {
			t.Fatalf("GetTransactionByExternalId: %v", err)
		}
		if found.ID != tagged.ID {
			t.Fatalf("found transaction %d, want %d", found.ID, tagged.ID)
		}
		if _, err := models.GetTransactionByExternalId(ctx, businessID, "erp-missing"); !errors.Is(err, utils.ErrorRecordNotFound) {
			t.Fatalf("expected ErrorRecordNotFound for unknown external id, got %v", err)
		}
	})

	t.Run("run report lists only its own conflicts", func(t *testing.T) {
		started := time.Now().Add(-time.Minute)
		finished := time.Now()
		runA := models.IntegrationSyncRun{
			BusinessId: businessID,
			Provider:   models.IntegrationProviderErp,
			Status:     models.SyncRunStatusSuccess,
			StartedAt:  &started,
			FinishedAt: &finished,
		}
		runB := models.IntegrationSyncRun{
			BusinessId: businessID,
			Provider:   models.IntegrationProviderErp,
			Status:     models.SyncRunStatusSuccess,
			StartedAt:  &started,
			FinishedAt: &finished,
		}
		if err := db.Create(&runA).Error; err != nil {
			t.Fatalf("create run A: %v", err)
		}
		if err := db.Create(&runB).Error; err != nil {
			t.Fatalf("create run B: %v", err)
		}

		conflict := &models.ReconciliationConflict{
			SyncRunId:     runA.ID,
			TransactionId: tagged.ID,
			ExternalId:    "erp-1",
			Kind:          models.ConflictKindAmount,
			InternalValue: "-50",
			ExternalValue: "-52",
		}
		if _, err := models.RecordConflict(ctx, db, businessID, conflict); err != nil {
			t.Fatalf("RecordConflict: %v", err)
		}

		// Both runs overlap the same detection window; only the tagged
		// run's report may carry the conflict.
		reportA, err := buildRunReport(ctx, businessID, int(runA.ID))
		if err != nil {
			t.Fatalf("buildRunReport(A): %v", err)
		}
		if len(reportA.Conflicts) != 1 {
			t.Fatalf("run A report has %d conflicts, want 1", len(reportA.Conflicts))
		}
		reportB, err := buildRunReport(ctx, businessID, int(runB.ID))
		if err != nil {
			t.Fatalf("buildRunReport(B): %v", err)
		}
		if len(reportB.Conflicts) != 0 {
			t.Fatalf("run B report has %d conflicts, want 0", len(reportB.Conflicts))
		}

		// Re-detection by a later run re-tags the open conflict.
		conflict2 := &models.ReconciliationConflict{
			SyncRunId:     runB.ID,
			TransactionId: tagged.ID,
			ExternalId:    "erp-1",
			Kind:          models.ConflictKindAmount,
			InternalValue: "-50",
			ExternalValue: "-52",
		}
		if _, err := models.RecordConflict(ctx, db, businessID, conflict2); err != nil {
			t.Fatalf("RecordConflict(redetect): %v", err)
		}
		reportB, err = buildRunReport(ctx, businessID, int(runB.ID))
		if err != nil {
			t.Fatalf("buildRunReport(B) after redetect: %v", err)
		}
		if len(reportB.Conflicts) != 1 {
			t.Fatalf("run B report has %d conflicts after redetect, want 1", len(reportB.Conflicts))
		}
	})
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("contarapida-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("contarapida-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=contarapida_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

// One-shot repair job: recompute wallet balances from the transaction log and
// fix any stored balance that drifted. Safe to re-run.
func main() {
	businessID := flag.String("business-id", "", "Optional: business id (uuid). Empty runs every business.")
	walletID := flag.Int("wallet-id", 0, "Optional: single wallet id (requires --business-id)")
	flag.Parse()

	if *walletID > 0 && strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--wallet-id requires --business-id")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var businessIds []string
	if strings.TrimSpace(*businessID) != "" {
		businessIds = append(businessIds, strings.TrimSpace(*businessID))
	} else {
		if err := db.Model(&models.Business{}).Pluck("id", &businessIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover businesses: %v\n", err)
			os.Exit(1)
		}
	}

	corrected := 0
	checked := 0
	for _, id := range businessIds {
		ctx := utils.SetBusinessIdInContext(context.Background(), id)

		if *walletID > 0 {
			result, err := models.RecalculateWalletBalance(ctx, id, *walletID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "recalculate failed business=%s wallet=%d: %v\n", id, *walletID, err)
				os.Exit(1)
			}
			checked++
			if result.Corrected {
				corrected++
				fmt.Printf("corrected business=%s wallet=%d balance=%s\n", id, result.WalletId, result.Balance.String())
			}
			continue
		}

		results, err := models.RecalculateAllWalletBalances(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "recalculate failed business=%s: %v\n", id, err)
			os.Exit(1)
		}
		checked += len(results)
		for _, r := range results {
			if r.Corrected {
				corrected++
				fmt.Printf("corrected business=%s wallet=%d balance=%s\n", id, r.WalletId, r.Balance.String())
			}
		}
	}

	fmt.Printf("balance recalculation complete: %d wallets checked, %d corrected\n", checked, corrected)
}

package models

import (
	"log"

	"github.com/contarapida/finance_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{}, &User{},
		&Wallet{}, &Transaction{}, &Category{},
		&Budget{}, &Goal{},
		&ReconciliationConflict{},
		&IntegrationConnection{}, &IntegrationSyncRun{}, &IntegrationEntityMapping{}, &IntegrationSyncError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

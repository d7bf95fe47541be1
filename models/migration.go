package models

import (
	"log"

	"github.com/anejaagam/trazo-backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Organization{}, &Site{}, &User{},
		&Cultivar{}, &Batch{}, &InventoryLot{},
		&RegistryItemCache{}, &RegistryTagCache{}, &RegistryPlantBatchCache{}, &RegistryFacilityCache{},
		&RegistryEntityMapping{}, &RegistrySyncLog{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

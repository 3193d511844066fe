package main

import (
	"fmt"
	"log"
	"time"

	"github.com/duka-app/dukago/internal/config"
	"github.com/duka-app/dukago/internal/database"
	"github.com/duka-app/dukago/internal/models"
	"github.com/duka-app/dukago/internal/utils"
	"gorm.io/datatypes"
)

func main() {
	fmt.Println("🌱 Duka Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.Business{},
		&models.User{},
		&models.Item{},
		&models.Tag{},
		&models.InventoryEvent{},
		&models.SyncOperation{},
		&models.Alert{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if data already exists
	var businessCount int64
	db.Model(&models.Business{}).Count(&businessCount)
	if businessCount > 0 {
		fmt.Printf("⚠️  Database already has %d businesses. Clear it first? (y/N): ", businessCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		// Clear existing data
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE notifications CASCADE")
		db.Exec("TRUNCATE TABLE alerts CASCADE")
		db.Exec("TRUNCATE TABLE sync_operations CASCADE")
		db.Exec("TRUNCATE TABLE inventory_events CASCADE")
		db.Exec("TRUNCATE TABLE tags CASCADE")
		db.Exec("TRUNCATE TABLE items CASCADE")
		db.Exec("TRUNCATE TABLE users CASCADE")
		db.Exec("TRUNCATE TABLE businesses CASCADE")
		fmt.Println("✅ Data cleared")
	}

	fmt.Println()
	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Create Business
	business := models.Business{
		Name:         "Mama Njeri General Store",
		Location:     "Nakuru Town East",
		ContactPhone: "+254700111222",
		Language:     "sw",
	}
	if err := db.Create(&business).Error; err != nil {
		log.Fatalf("❌ Failed to create business: %v", err)
	}
	fmt.Printf("🏪 Created business: %s (%s)\n", business.Name, business.ID)

	// 2. Create Users
	hash, err := utils.HashPassword("demo1234")
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	users := []models.User{
		{BusinessID: business.ID, Name: "Grace Njeri", Email: "owner@duka.demo", PasswordHash: hash, Role: models.RoleOwner},
		{BusinessID: business.ID, Name: "Peter Omondi", Email: "admin@duka.demo", PasswordHash: hash, Role: models.RoleAdmin},
		{BusinessID: business.ID, Name: "Amina Yusuf", Email: "staff@duka.demo", PasswordHash: hash, Role: models.RoleStaff},
	}
	for i := range users {
		if err := db.Create(&users[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create user %s: %v", users[i].Email, err)
		}
		fmt.Printf("   ✓ Created user: %s (%s)\n", users[i].Email, users[i].Role)
	}
	owner := users[0]

	// 3. Create Items
	fmt.Println("📦 Creating items...")
	soon := time.Now().AddDate(0, 0, 4)
	later := time.Now().AddDate(0, 3, 0)
	items := []models.Item{
		{
			BusinessID:   business.ID,
			Name:         "Unga wa Dola 2kg",
			SKU:          "UNGA-2KG",
			Quantity:     48,
			Unit:         models.UnitPiece,
			Category:     "Flour",
			Location:     "Shelf 1",
			Tags:         datatypes.NewJSONSlice([]string{"staple", "fast-moving"}),
			MinThreshold: 12,
		},
		{
			BusinessID:   business.ID,
			Name:         "Cooking Oil",
			SKU:          "OIL-BULK",
			Quantity:     18,
			Unit:         models.UnitVolume,
			Category:     "Cooking",
			Location:     "Back store",
			MinThreshold: 5,
		},
		{
			BusinessID:   business.ID,
			Name:         "Fresh Milk 500ml",
			SKU:          "MILK-500",
			Quantity:     10,
			Unit:         models.UnitPiece,
			Category:     "Dairy",
			MinThreshold: 8,
			ExpiryDate:   &soon,
		},
		{
			BusinessID:   business.ID,
			Name:         "Sugar",
			SKU:          "SUGAR-BULK",
			Quantity:     0,
			Unit:         models.UnitWeight,
			Category:     "Staples",
			MinThreshold: 10,
			ExpiryDate:   &later,
		},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create item %s: %v", items[i].Name, err)
		}
		fmt.Printf("   ✓ Created item: %s (qty %d)\n", items[i].Name, items[i].Quantity)
	}

	// 4. Seed the ledger so quantities reconcile against event history
	fmt.Println("🧾 Seeding inventory events...")
	for i := range items {
		if items[i].Quantity == 0 {
			continue
		}
		event := models.InventoryEvent{
			ItemID:     items[i].ID,
			BusinessID: business.ID,
			UserID:     owner.ID,
			Delta:      items[i].Quantity,
			Action:     models.ActionAdded,
			Reason:     "Initial stock",
		}
		if err := db.Create(&event).Error; err != nil {
			log.Fatalf("❌ Failed to create event for %s: %v", items[i].Name, err)
		}
	}
	fmt.Println("✅ Events seeded")

	// 5. Register a couple of scannable tags
	fmt.Println("🏷️  Creating tags...")
	tags := []models.Tag{
		{TagID: "DK-DEMO000001", Type: models.TagTypeItem, BusinessID: business.ID, AttachedItemID: &items[0].ID},
		{TagID: "DK-DEMO000002", Type: models.TagTypeBox, BusinessID: business.ID, Meta: datatypes.JSONMap{"shelf": "back-store"}},
	}
	for i := range tags {
		if err := db.Create(&tags[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create tag %s: %v", tags[i].TagID, err)
		}
		fmt.Printf("   ✓ Created tag: %s\n", tags[i].TagID)
	}

	fmt.Println()
	fmt.Println("✅ Demo data ready. Login with owner@duka.demo / demo1234")
}

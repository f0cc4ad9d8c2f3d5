package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/xavierca1/lead-sheets-monitor/internal/entity"
	"github.com/xavierca1/lead-sheets-monitor/internal/infra/integration/momence"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using system environment variables")
	}

	hostID := os.Getenv("TEST_HOST_ID")
	token := os.Getenv("TEST_API_TOKEN")
	if hostID == "" || token == "" {
		log.Fatal("❌ TEST_HOST_ID and TEST_API_TOKEN must be set in .env")
	}

	baseURL := os.Getenv("MOMENCE_API_URL")
	if baseURL == "" {
		baseURL = "https://api.momence.com"
	}

	tenant := &entity.Tenant{
		ID:       "sample",
		Name:     "Sample Tenant",
		HostID:   hostID,
		APIToken: token,
		Enabled:  true,
	}

	lead := entity.LeadEntry{
		Email:           "jane.sample@example.com",
		FirstName:       "Jane",
		LastName:        "Sample",
		Phone:           "6125550100",
		ZipCode:         "55344",
		DiscoveryAnswer: "Sample harness",
		SourceID:        os.Getenv("TEST_SOURCE_ID"),
	}

	fmt.Println("🔄 Delivering test lead to Momence...")
	fmt.Printf("📋 Lead:\n")
	fmt.Printf("   Email: %s\n", lead.Email)
	fmt.Printf("   Name: %s %s\n", lead.FirstName, lead.LastName)
	fmt.Printf("   Phone: %s\n", lead.Phone)
	fmt.Printf("   Host: %s\n\n", hostID)

	client := momence.NewClient(baseURL, 15*time.Second, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Deliver(ctx, lead, tenant); err != nil {
		log.Fatalf("Delivery failed: %v", err)
	}

	fmt.Println("Lead delivered successfully!")
	fmt.Printf(" Collector: %s/host/%s/lead-collector\n", baseURL, hostID)
}

// Command seed posts sample disasters, reports, and resources to a running
// hub so the event stream and record endpoints have data during local
// development.
//
// Usage:
//
//	go run ./cmd/seed -hub http://localhost:8080
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	hubURL := flag.String("hub", "http://localhost:8080", "base URL of the hub")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	disasters := []map[string]any{
		{
			"title":         "Gulf Coast Hurricane",
			"location_name": "Houston, TX",
			"description":   "Category 3 hurricane making landfall",
			"tags":          []string{"hurricane", "flood"},
		},
		{
			"title":         "Sierra Wildfire",
			"location_name": "Fresno County, CA",
			"description":   "Fast-moving wildfire in the foothills",
			"tags":          []string{"wildfire"},
		},
	}

	var disasterIDs []string
	for _, d := range disasters {
		var created struct {
			ID string `json:"id"`
		}
		if err := post(client, *hubURL+"/disasters", d, &created); err != nil {
			return fmt.Errorf("create disaster: %w", err)
		}
		disasterIDs = append(disasterIDs, created.ID)
		log.Printf("created disaster %s (%s)", created.ID, d["title"])
	}

	reports := []map[string]any{
		{
			"disaster_id": disasterIDs[0],
			"content":     "URGENT: water rising fast on Allen Parkway, families trapped upstairs",
		},
		{
			"disaster_id": disasterIDs[0],
			"content":     "Grocery stores on the west side still open, shelves thinning",
		},
		{
			"disaster_id": disasterIDs[1],
			"content":     "Smoke visible from highway 41, evacuation feels immediate",
		},
	}
	for _, r := range reports {
		var created struct {
			ID       string `json:"id"`
			Priority bool   `json:"priority"`
		}
		if err := post(client, *hubURL+"/reports", r, &created); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		log.Printf("created report %s (priority=%v)", created.ID, created.Priority)
	}

	resources := []map[string]any{
		{
			"disaster_id": disasterIDs[0],
			"name":        "George R. Brown Convention Center",
			"type":        "shelter",
			"lat":         29.7520,
			"lon":         -95.3573,
		},
		{
			"disaster_id": disasterIDs[1],
			"name":        "Fresno Community Regional Medical Center",
			"type":        "hospital",
			"lat":         36.7378,
			"lon":         -119.7871,
		},
	}
	for _, res := range resources {
		var created struct {
			ID string `json:"id"`
		}
		if err := post(client, *hubURL+"/resources", res, &created); err != nil {
			return fmt.Errorf("create resource: %w", err)
		}
		log.Printf("created resource %s (%s)", created.ID, res["name"])
	}

	return nil
}

func post(client *http.Client, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wolfman30/service-marketplace/internal/http/middleware"
)

// Drives one booking through a running API: open, add a service, schedule, submit.
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run ./scripts/smoke <business_id> <service_id>")
		fmt.Println("Example: go run ./scripts/smoke biz-demo svc-massage-60")
		os.Exit(1)
	}
	businessID := os.Args[1]
	serviceID := os.Args[2]

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	var token string
	if secret := os.Getenv("AUTH_JWT_SECRET"); secret != "" {
		customerID := os.Getenv("SMOKE_CUSTOMER_ID")
		if customerID == "" {
			customerID = "smoke-customer"
		}
		claims := middleware.CustomerClaims{
			Email: "smoke@example.com",
			Name:  "Smoke Test",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   customerID,
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			fmt.Printf("Error signing token: %v\n", err)
			os.Exit(1)
		}
		token = signed
	}

	c := &client{base: apiURL + "/v1", token: token, http: &http.Client{Timeout: 30 * time.Second}}

	var draft struct {
		ID string `json:"id"`
	}
	c.call(http.MethodPost, "/businesses/"+businessID+"/drafts", map[string]any{
		"delivery_mode": "in_studio",
		"contact":       map[string]string{"name": "Smoke Test", "email": "smoke@example.com"},
	}, http.StatusCreated, &draft)
	fmt.Printf("Opened draft %s\n", draft.ID)

	c.call(http.MethodPost, "/drafts/"+draft.ID+"/items", map[string]string{"kind": "service", "id": serviceID}, http.StatusOK, nil)
	c.call(http.MethodPut, "/drafts/"+draft.ID+"/schedule", map[string]string{
		"preferred_date": time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"preferred_time": "10:00",
	}, http.StatusOK, nil)

	var result map[string]any
	c.call(http.MethodPost, "/drafts/"+draft.ID+"/submit", nil, http.StatusCreated, &result)
	pretty, _ := json.MarshalIndent(result, "", "  ")
	fmt.Printf("Submitted!\n%s\n", string(pretty))
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) call(method, path string, payload any, want int, out any) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			fmt.Printf("Error marshaling request: %v\n", err)
			os.Exit(1)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fmt.Printf("Error making request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		fmt.Printf("%s %s: HTTP %d\n", method, path, resp.StatusCode)
		fmt.Printf("Response: %s\n", string(data))
		os.Exit(1)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			os.Exit(1)
		}
	}
}

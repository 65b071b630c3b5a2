package fn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ifconfigURL serves the caller's geo info as JSON.
const ifconfigURL = "https://ifconfig.co/json"

// Builtins returns the stock function table. client is used for functions
// that call out over HTTP; nil falls back to a default client.
func Builtins(client *http.Client) []Function {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return []Function{
		locationByIP(client),
		tellDatetime(),
	}
}

func locationByIP(client *http.Client) Function {
	return Function{
		Definition: Definition{
			Name:        "get_location_by_ip_address",
			Description: "Get location by IP address",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"ipAddress": {
						"type": "string",
						"description": "The IP address to get the location of"
					}
				}
			}`),
		},
		Callback: func(ctx context.Context, _ any) (string, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, ifconfigURL, nil)
			if err != nil {
				return "", err
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("ifconfig.co returned %d", resp.StatusCode)
			}

			var info struct {
				TimeZone string `json:"time_zone"`
				Country  string `json:"country"`
				City     string `json:"city"`
			}
			if err := json.Unmarshal(body, &info); err != nil {
				return "", fmt.Errorf("decoding ifconfig.co response: %w", err)
			}

			out, err := json.Marshal(map[string]string{
				"timeZone": info.TimeZone,
				"country":  info.Country,
				"city":     info.City,
			})
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

func tellDatetime() Function {
	return Function{
		Definition: Definition{
			Name:        "tell_datetime",
			Description: "Get current time and date based on the timezone",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"timezone": {
						"type": "string",
						"description": "The timezone to use. This should be a valid timezone name from the tz database."
					}
				},
				"required": ["timezone"]
			}`),
		},
		Callback: func(_ context.Context, args any) (string, error) {
			zone := ""
			if m, ok := args.(map[string]any); ok {
				zone, _ = m["timezone"].(string)
			}
			if zone == "" {
				return "", fmt.Errorf("timezone argument is required")
			}

			loc, err := time.LoadLocation(zone)
			if err != nil {
				return "", fmt.Errorf("unknown timezone %q: %w", zone, err)
			}

			out, err := json.Marshal(time.Now().In(loc).Format("1/2/2006, 3:04:05 PM"))
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIClient talks to the practice API the way the web frontend does
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL + "/api",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Response types matching backend

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type Patient struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	UserID *string `json:"userId"`
}

type Invite struct {
	Invite struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"invite"`
	Token string `json:"token"`
}

type Record struct {
	ID string `json:"id"`
}

// Session is a logged-in account
type Session struct {
	User  User
	Token string
}

const simulatorPassword = "Simulat0r!pass"

// RegisterUser creates an account with a unique email derived from baseName
func (c *APIClient) RegisterUser(baseName, role string) (*Session, error) {
	suffix := time.Now().UnixNano() % 1000000
	body := map[string]string{
		"name":     baseName,
		"email":    fmt.Sprintf("%s.%d@simulator.local", baseName, suffix),
		"password": simulatorPassword,
		"role":     role,
	}

	var result AuthResponse
	if err := c.do(http.MethodPost, "/auth/register", body, "", http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("register %s: %w", baseName, err)
	}
	return &Session{User: result.User, Token: result.Token}, nil
}

func (c *APIClient) Login(email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var result AuthResponse
	if err := c.do(http.MethodPost, "/auth/login", body, "", http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &Session{User: result.User, Token: result.Token}, nil
}

func (c *APIClient) CreatePatient(token, name, email string) (*Patient, error) {
	body := map[string]string{
		"name":   name,
		"email":  email,
		"gender": "other",
		"goals":  "Improve energy levels and eat more vegetables",
	}

	var patient Patient
	if err := c.do(http.MethodPost, "/patients", body, token, http.StatusCreated, &patient); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return &patient, nil
}

func (c *APIClient) CreateInvite(token, patientID, email string) (*Invite, error) {
	body := map[string]string{"patientId": patientID, "email": email}

	var invite Invite
	if err := c.do(http.MethodPost, "/invites", body, token, http.StatusCreated, &invite); err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}
	return &invite, nil
}

func (c *APIClient) AcceptInvite(token, inviteToken string) error {
	body := map[string]string{"token": inviteToken}
	if err := c.do(http.MethodPost, "/invites/accept", body, token, http.StatusOK, nil); err != nil {
		return fmt.Errorf("accept invite: %w", err)
	}
	return nil
}

func (c *APIClient) CreateAssessment(token, patientID string, weightKg, heightCm float64) (*Record, error) {
	body := map[string]interface{}{
		"patientId": patientID,
		"weightKg":  weightKg,
		"heightCm":  heightCm,
		"measurements": map[string]float64{
			"waistCm": 82,
			"hipCm":   98,
		},
	}

	var record Record
	if err := c.do(http.MethodPost, "/nutritional-assessments", body, token, http.StatusCreated, &record); err != nil {
		return nil, fmt.Errorf("create assessment: %w", err)
	}
	return &record, nil
}

func (c *APIClient) CreateDietPlan(token, patientID string, start time.Time) (*Record, error) {
	body := map[string]interface{}{
		"patientId":     patientID,
		"title":         "Balanced plan",
		"dailyCalories": 2000,
		"startDate":     start.Format(time.DateOnly),
		"endDate":       start.AddDate(0, 1, 0).Format(time.DateOnly),
		"status":        "active",
		"meals": []map[string]string{
			{"name": "breakfast", "description": "Oats with fruit"},
			{"name": "lunch", "description": "Rice, beans and grilled chicken"},
			{"name": "dinner", "description": "Vegetable soup"},
		},
	}

	var record Record
	if err := c.do(http.MethodPost, "/diet-plans", body, token, http.StatusCreated, &record); err != nil {
		return nil, fmt.Errorf("create diet plan: %w", err)
	}
	return &record, nil
}

func (c *APIClient) CreateConsultation(token, patientID string, at time.Time) (*Record, error) {
	body := map[string]interface{}{
		"patientId":       patientID,
		"scheduledAt":     at.Format(time.RFC3339),
		"durationMinutes": 50,
		"type":            "follow_up",
	}

	var record Record
	if err := c.do(http.MethodPost, "/consultations", body, token, http.StatusCreated, &record); err != nil {
		return nil, fmt.Errorf("create consultation: %w", err)
	}
	return &record, nil
}

func (c *APIClient) CreateBlogPost(token, title, content string, tags []string) (*Record, error) {
	published := true
	body := map[string]interface{}{
		"title":     title,
		"summary":   content,
		"content":   "<p>" + content + "</p>",
		"tags":      tags,
		"published": published,
	}

	var record Record
	if err := c.do(http.MethodPost, "/blog/posts", body, token, http.StatusCreated, &record); err != nil {
		return nil, fmt.Errorf("create blog post: %w", err)
	}
	return &record, nil
}

// HTTP helpers

func (c *APIClient) do(method, path string, body interface{}, token string, want int, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != want {
		if len(env.Errors) > 0 {
			return fmt.Errorf("status %d: %s (%s: %s)", resp.StatusCode, env.Message, env.Errors[0].Field, env.Errors[0].Message)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, env.Message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

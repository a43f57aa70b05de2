package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Global flags
	apiURL := "http://localhost:8080"
	if envURL := os.Getenv("API_URL"); envURL != "" {
		apiURL = envURL
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "full":
		fullCmd(apiURL, args)
	case "patients":
		patientsCmd(apiURL, args)
	case "blog":
		blogCmd(apiURL, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Practice Simulator - Development tool that fills a local practice with demo data

USAGE:
  simulator <command> [options]

COMMANDS:
  full      Register a nutritionist with linked patients, assessments, plans and consultations
  patients  Add patient records to an existing nutritionist account
  blog      Publish demo blog posts as an existing nutritionist
  help      Show this help message

ENVIRONMENT:
  API_URL   Backend API URL (default: http://localhost:8080)

EXAMPLES:
  # New nutritionist with 3 patients who have accepted their invites
  simulator full

  # Same, with 10 patients and consultations starting in two days
  simulator full --count=10 --days=2

  # Add 5 unlinked patient records to an existing account
  simulator patients --email=ana@example.com --password=secret --count=5`)
}

func fullCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("full", flag.ExitOnError)
	count := fs.Int("count", 3, "Number of patients to create")
	days := fs.Int("days", 3, "Days from now until the first consultation")
	skipInvites := fs.Bool("skip-invites", false, "Create patient records without patient accounts")
	fs.Parse(args)

	if *count < 1 || *count > 50 {
		fmt.Println("Error: --count must be between 1 and 50")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)

	fmt.Println("=== Practice Simulator: Full Flow ===")
	fmt.Println()

	// 1. Nutritionist account
	fmt.Print("Registering nutritionist... ")
	nutritionist, err := client.RegisterUser("nutritionist", "nutritionist")
	if err != nil {
		fmt.Printf("FAILED\n  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK (%s)\n", nutritionist.User.Email)

	// 2. Patients, each with an account that accepts the invite
	fmt.Println()
	fmt.Printf("Adding %d patients:\n", *count)

	firstConsultation := time.Now().AddDate(0, 0, *days).Truncate(time.Hour)
	patientLogins := make([]string, 0, *count)

	for i := 0; i < *count; i++ {
		name := fmt.Sprintf("patient%d", i+1)

		var account *Session
		email := fmt.Sprintf("%s.%d@simulator.local", name, time.Now().UnixNano()%1000000)
		if !*skipInvites {
			account, err = client.RegisterUser(name, "patient")
			if err != nil {
				fmt.Printf("  [%d/%d] FAILED to register: %v\n", i+1, *count, err)
				os.Exit(1)
			}
			email = account.User.Email
		}

		patient, err := client.CreatePatient(nutritionist.Token, name, email)
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED: %v\n", i+1, *count, err)
			os.Exit(1)
		}

		if account != nil {
			invite, err := client.CreateInvite(nutritionist.Token, patient.ID, email)
			if err != nil {
				fmt.Printf("  [%d/%d] FAILED to invite: %v\n", i+1, *count, err)
				os.Exit(1)
			}
			if err := client.AcceptInvite(account.Token, invite.Token); err != nil {
				fmt.Printf("  [%d/%d] FAILED to accept invite: %v\n", i+1, *count, err)
				os.Exit(1)
			}
			patientLogins = append(patientLogins, email)
		}

		weight := 60 + float64(i*4%30)
		if _, err := client.CreateAssessment(nutritionist.Token, patient.ID, weight, 168); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		if _, err := client.CreateDietPlan(nutritionist.Token, patient.ID, time.Now()); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		at := firstConsultation.Add(time.Duration(i) * time.Hour)
		if _, err := client.CreateConsultation(nutritionist.Token, patient.ID, at); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}

		fmt.Printf("  [%d/%d] %s added (consultation %s)\n", i+1, *count, name, at.Format(time.DateTime))
	}

	// Print summary
	fmt.Println()
	fmt.Println("=========================================")
	fmt.Println("  PRACTICE READY")
	fmt.Println("=========================================")
	fmt.Println()
	fmt.Printf("  Nutritionist: %s\n", nutritionist.User.Email)
	for _, email := range patientLogins {
		fmt.Printf("  Patient:      %s\n", email)
	}
	fmt.Printf("  Password:     %s\n", simulatorPassword)
	fmt.Println()
}

func patientsCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("patients", flag.ExitOnError)
	email := fs.String("email", "", "Nutritionist email (required)")
	password := fs.String("password", "", "Nutritionist password (required)")
	count := fs.Int("count", 5, "Number of patients to add")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: --email and --password are required")
		fmt.Println("\nUsage: simulator patients --email=ana@example.com --password=secret [--count=5]")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)
	session, err := client.Login(*email, *password)
	if err != nil {
		fmt.Printf("Failed to log in: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Adding %d patients for %s...\n\n", *count, session.User.Name)

	for i := 0; i < *count; i++ {
		name := fmt.Sprintf("Patient %d", i+1)
		patient, err := client.CreatePatient(session.Token, name, "")
		if err != nil {
			fmt.Printf("  [%d/%d] FAILED: %v\n", i+1, *count, err)
			continue
		}
		fmt.Printf("  [%d/%d] %s (%s)\n", i+1, *count, patient.Name, patient.ID)
	}
}

func blogCmd(apiURL string, args []string) {
	fs := flag.NewFlagSet("blog", flag.ExitOnError)
	email := fs.String("email", "", "Nutritionist email (required)")
	password := fs.String("password", "", "Nutritionist password (required)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: --email and --password are required")
		os.Exit(1)
	}

	client := NewAPIClient(apiURL)
	session, err := client.Login(*email, *password)
	if err != nil {
		fmt.Printf("Failed to log in: %v\n", err)
		os.Exit(1)
	}

	posts := []struct {
		title   string
		content string
		tags    []string
	}{
		{"Hydration basics", "How much water you actually need during the day.", []string{"water", "health"}},
		{"Meal prep for busy weeks", "Cook once, eat well for three days.", []string{"meal-prep"}},
		{"Reading food labels", "What to look for beyond the calorie count.", []string{"labels", "shopping"}},
	}

	for _, p := range posts {
		if _, err := client.CreateBlogPost(session.Token, p.title, p.content, p.tags); err != nil {
			fmt.Printf("  FAILED %q: %v\n", p.title, err)
			continue
		}
		fmt.Printf("  Published %q\n", p.title)
	}
}

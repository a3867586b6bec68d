package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "task":
		handleTask(args)
	case "team":
		handleTeam(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: teamtask auth <login|logout|who|register|passwd>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	case "register":
		registerUser(args[1:])
	case "passwd":
		changePassword(args[1:])
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleTask(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: teamtask task <list|create|update|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listTasks(args[1:])
	case "create":
		createTask(args[1:])
	case "update":
		updateTask(args[1:])
	case "delete":
		deleteTask(args[1:])
	default:
		fmt.Printf("unknown task command: %s\n", subCmd)
	}
}

func handleTeam(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: teamtask team <list|invite|invite-manager>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listTeam(args[1:])
	case "invite":
		inviteMember(args[1:], false)
	case "invite-manager":
		inviteMember(args[1:], true)
	default:
		fmt.Printf("unknown team command: %s\n", subCmd)
	}
}

// Auth commands
func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s (%v)\n", *email, result["role"])
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result["error"])
	}
}

func logoutUser() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", token[:20])
}

func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	token := fs.String("token", "", "invitation token")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "invited email")
	password := fs.String("password", "", "new password")

	fs.Parse(args)

	if *token == "" || *name == "" || *email == "" || *password == "" {
		fmt.Println("Error: token, name, email, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"token":    *token,
		"name":     *name,
		"email":    *email,
		"password": *password,
	}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Registered: %s (%v)\n", *email, result["role"])
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result["error"])
	}
}

func changePassword(args []string) {
	fs := flag.NewFlagSet("passwd", flag.ExitOnError)
	current := fs.String("current", "", "current password")
	newPass := fs.String("new", "", "new password")

	fs.Parse(args)

	if *current == "" || *newPass == "" {
		fmt.Println("Error: current and new passwords are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"currentPassword": *current, "newPassword": *newPass}
	result, status, err := doAuthed("POST", "/auth/password", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 200 {
		fmt.Println("✓ Password changed")
	} else {
		fmt.Printf("✗ Password change failed: %v\n", result["error"])
	}
}

// Task commands
func listTasks(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/tasks", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("✗ List failed: %s\n", string(body))
		return
	}

	var tasks []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&tasks)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRIORITY\tDUE")
	for _, t := range tasks {
		due := t["dueDate"]
		if due == nil {
			due = "-"
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", t["id"], t["title"], t["status"], t["priority"], due)
	}
	w.Flush()
}

func createTask(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	title := fs.String("title", "", "task title")
	description := fs.String("description", "", "task description")
	priority := fs.String("priority", "", "LOW, MEDIUM, or HIGH")
	assignees := fs.String("assignees", "", "comma-separated employee ids")

	fs.Parse(args)

	if *title == "" || *assignees == "" {
		fmt.Println("Error: title and assignees are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]interface{}{
		"title":               *title,
		"description":         *description,
		"assignedEmployeeIds": splitCSV(*assignees),
	}
	if *priority != "" {
		payload["priority"] = *priority
	}

	result, status, err := doAuthed("POST", "/tasks", payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Task created: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Create failed: %v\n", result["error"])
	}
}

func updateTask(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	id := fs.String("id", "", "task id")
	status := fs.String("status", "", "PENDING, IN_PROGRESS, or COMPLETED")
	title := fs.String("title", "", "new title")
	priority := fs.String("priority", "", "LOW, MEDIUM, or HIGH")

	fs.Parse(args)

	if *id == "" {
		fmt.Println("Error: id is required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]interface{}{}
	if *status != "" {
		payload["status"] = *status
	}
	if *title != "" {
		payload["title"] = *title
	}
	if *priority != "" {
		payload["priority"] = *priority
	}
	if len(payload) == 0 {
		fmt.Println("Error: nothing to update")
		return
	}

	result, code, err := doAuthed("PUT", "/tasks/"+*id, payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if code == 200 {
		fmt.Printf("✓ Task updated: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Update failed: %v\n", result["error"])
	}
}

func deleteTask(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: teamtask task delete <task-id>")
		return
	}

	req, _ := http.NewRequest("DELETE", getAPIURL()+"/tasks/"+args[0], nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 204 {
		fmt.Println("✓ Task deleted")
	} else {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("✗ Delete failed: %s\n", string(body))
	}
}

// Team commands
func listTeam(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/team/employees", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		fmt.Printf("✗ List failed: %s\n", string(body))
		return
	}

	var team []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&team)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
	for _, e := range team {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", e["id"], e["name"], e["email"], e["role"])
	}
	w.Flush()
}

func inviteMember(args []string, manager bool) {
	fs := flag.NewFlagSet("invite", flag.ExitOnError)
	email := fs.String("email", "", "invitee email")
	name := fs.String("name", "", "invitee name")

	fs.Parse(args)

	if *email == "" {
		fmt.Println("Error: email is required")
		fs.PrintDefaults()
		return
	}

	path := "/team/invitations"
	if manager {
		path += "/manager"
	}
	payload := map[string]string{"email": *email, "name": *name}
	result, status, err := doAuthed("POST", path, payload)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if status == 201 {
		fmt.Printf("✓ Invitation sent to %s (expires %v)\n", *email, result["expiry"])
		if warning, ok := result["warning"].(string); ok && warning != "" {
			fmt.Printf("  warning: %s\n", warning)
		}
	} else {
		fmt.Printf("✗ Invite failed: %v\n", result["error"])
	}
}

// Helper functions
func doAuthed(method, path string, payload interface{}) (map[string]interface{}, int, error) {
	data, _ := json.Marshal(payload)
	req, err := http.NewRequest(method, getAPIURL()+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	addAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	return result, resp.StatusCode, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getAPIURL() string {
	if url := os.Getenv("TEAMTASK_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.teamtask/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.teamtask", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`TeamTask CLI

Usage:
  teamtask <command> [options]

Commands:
  auth  Authentication (login, logout, who, register, passwd)
  task  Task operations (list, create, update, delete)
  team  Team operations (list, invite, invite-manager)
  help  Show this help message

Environment Variables:
  TEAMTASK_API    API endpoint (default: http://localhost:8080/api)

Examples:
  teamtask auth login -email manager@example.com -password pass
  teamtask task list
  teamtask task create -title "Quarterly report" -assignees emp-1,emp-2
  teamtask team invite -email newhire@example.com -name "New Hire"
`)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vigil-btc/vigild/internal/config"
)

// flags
var (
	urlFlag = &cli.StringFlag{
		Name:  "url",
		Usage: "address of the daemon to connect to",
		Value: fmt.Sprintf("http://localhost:%d", config.DefaultPort),
	}
	tokenFlag = &cli.StringFlag{
		Name:     "token",
		Usage:    "bearer token identifying the switch owner",
		Required: true,
	}
)

// commands
var (
	switchesCmd = &cli.Command{
		Name:  "switches",
		Usage: "Inspect and manage switches over the daemon API",
		Flags: []cli.Flag{urlFlag, tokenFlag},
		Subcommands: append(
			cli.Commands{},
			switchesListCmd,
			switchesShowCmd,
			switchesCheckInCmd,
		),
	}
	switchesListCmd = &cli.Command{
		Name:   "list",
		Usage:  "List all switches owned by the token principal",
		Action: switchesListAction,
	}
	switchesShowCmd = &cli.Command{
		Name:      "show",
		Usage:     "Show a single switch",
		ArgsUsage: "<id>",
		Action:    switchesShowAction,
	}
	switchesCheckInCmd = &cli.Command{
		Name:      "checkin",
		Usage:     "Check in on a switch to push its deadline forward",
		ArgsUsage: "<id>",
		Action:    switchesCheckInAction,
	}
)

func switchesListAction(ctx *cli.Context) error {
	url := fmt.Sprintf("%s/v1/switches", ctx.String("url"))
	out, err := get(url, ctx.String("token"))
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func switchesShowAction(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("missing switch id")
	}

	url := fmt.Sprintf("%s/v1/switches/%s", ctx.String("url"), id)
	out, err := get(url, ctx.String("token"))
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func switchesCheckInAction(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "" {
		return fmt.Errorf("missing switch id")
	}

	url := fmt.Sprintf("%s/v1/switches/%s/checkin", ctx.String("url"), id)
	out, err := post(url, "", ctx.String("token"))
	if err != nil {
		return err
	}

	fmt.Println(out)
	return nil
}

func get(url, token string) (string, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return "", err
	}
	return do(req, token)
}

func post(url, body, token string) (string, error) {
	req, err := http.NewRequest("POST", url, strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Add("Content-Type", "application/json")
	return do(req, token)
}

func do(req *http.Request, token string) (string, error) {
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("request failed: %s", string(buf))
	}

	var pretty map[string]interface{}
	if err := json.Unmarshal(buf, &pretty); err != nil {
		return string(buf), nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return string(buf), nil
	}
	return string(out), nil
}

// Package integration exercises the Execution Service end to end
// against a real Docker daemon, covering the request/response scenarios
// the design's worked examples describe.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/codeboxed/execd/internal/activeset"
	"github.com/codeboxed/execd/internal/api"
	"github.com/codeboxed/execd/internal/coordinator"
	"github.com/codeboxed/execd/internal/langhandler"
	"github.com/codeboxed/execd/internal/pool"
	"github.com/codeboxed/execd/internal/provider"
	"github.com/codeboxed/execd/internal/provider/docker"
	"github.com/codeboxed/execd/internal/session"
)

const (
	authToken = "integration-test-token"
	serverURL = "http://localhost:18099"
)

var testProvider provider.Provider
var testPool *pool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	p, err := docker.New(docker.Config{})
	if err != nil {
		fmt.Printf("docker: failed to init provider: %v\n", err)
		return 0
	}
	testProvider = p

	if err := p.Healthy(context.Background()); err != nil {
		fmt.Printf("docker unreachable, skipping integration tests: %v\n", err)
		return 0
	}

	testPool = pool.New(p, 4)
	sessions := session.New(testPool)
	active := activeset.New()
	languages, err := langhandler.NewRegistry([]string{"python", "node", "bash", "c"})
	if err != nil {
		fmt.Printf("langhandler: invalid registry: %v\n", err)
		return 1
	}
	coord := coordinator.New(p, testPool, sessions, active, languages, 30)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.NewHandler(coord, sessions, languages, authToken, 10).Register(e)

	go func() {
		if err := e.Start(":18099"); err != nil && err != http.ErrServerClosed {
			fmt.Printf("server failed: %v\n", err)
		}
	}()
	defer e.Shutdown(context.Background())

	if !waitForServer() {
		fmt.Println("timed out waiting for test server")
		return 1
	}

	return m.Run()
}

func waitForServer() bool {
	for i := 0; i < 20; i++ {
		resp, err := http.Get(serverURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

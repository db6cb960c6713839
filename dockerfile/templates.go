package dockerfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// packageJSON is the minimal shape read out of package.json to pick a
// package-manager variant and an optional build step.
type packageJSON struct {
	Scripts map[string]string `json:"scripts"`
}

// buildNodeTemplate picks the Node Dockerfile variant by the strongest
// available signal: a start/build script mentioning "bun" wins outright;
// otherwise the lock file present in the directory decides
// (bun.lockb > yarn.lock > pnpm-lock.yaml), defaulting to npm if none match.
// If scripts.build exists, the template runs it before CMD.
func buildNodeTemplate(dir, packageJSONPath string) *dockerfileTemplate {
	manager := "npm"
	hasBuildScript := false

	raw, err := os.ReadFile(packageJSONPath)
	if err == nil {
		var parsed packageJSON
		if json.Unmarshal(raw, &parsed) == nil {
			if mentionsBun(parsed.Scripts["start"]) || mentionsBun(parsed.Scripts["build"]) {
				manager = "bun"
			}
			_, hasBuildScript = parsed.Scripts["build"]
		}
	}

	if manager == "npm" {
		switch {
		case fileExists(filepath.Join(dir, "bun.lockb")):
			manager = "bun"
		case fileExists(filepath.Join(dir, "yarn.lock")):
			manager = "yarn"
		case fileExists(filepath.Join(dir, "pnpm-lock.yaml")):
			manager = "pnpm"
		}
	}

	return nodeTemplateFor(manager, hasBuildScript)
}

func mentionsBun(script string) bool {
	return strings.Contains(strings.ToLower(script), "bun")
}

func nodeTemplateFor(manager string, hasBuildScript bool) *dockerfileTemplate {
	var installLine, buildLine, runCmd string

	switch manager {
	case "bun":
		installLine = "RUN bun install"
		buildLine = "RUN bun run build"
		runCmd = `CMD ["bun", "run", "start"]`
	case "yarn":
		installLine = "RUN yarn install --frozen-lockfile"
		buildLine = "RUN yarn build"
		runCmd = `CMD ["yarn", "start"]`
	case "pnpm":
		installLine = "RUN corepack enable && pnpm install --frozen-lockfile"
		buildLine = "RUN pnpm build"
		runCmd = `CMD ["pnpm", "start"]`
	default:
		installLine = "RUN npm ci"
		buildLine = "RUN npm run build"
		runCmd = `CMD ["npm", "start"]`
	}

	lines := []string{
		"FROM node:20-alpine",
		"WORKDIR /app",
		"COPY . .",
		installLine,
	}
	if hasBuildScript {
		lines = append(lines, buildLine)
	}
	lines = append(lines, runCmd)

	return &dockerfileTemplate{body: strings.Join(lines, "\n") + "\n"}
}

func pythonTemplate() *dockerfileTemplate {
	body := strings.Join([]string{
		"FROM python:3.12-slim",
		"WORKDIR /app",
		"COPY . .",
		"RUN pip install --no-cache-dir -r requirements.txt",
		`CMD ["python", "app.py"]`,
	}, "\n") + "\n"
	return &dockerfileTemplate{body: body}
}

func goTemplate() *dockerfileTemplate {
	body := strings.Join([]string{
		"FROM golang:1.25-alpine AS builder",
		"WORKDIR /src",
		"COPY . .",
		"RUN go build -o /app/server .",
		"",
		"FROM alpine:3.20",
		"COPY --from=builder /app/server /app/server",
		`CMD ["/app/server"]`,
	}, "\n") + "\n"
	return &dockerfileTemplate{body: body}
}

package docker

import (
	"bytes"
	"encoding/json"
	"text/template"
)

// Language is a container template family
type Language string

const (
	LanguageGo      Language = "go"
	LanguageNode    Language = "node"
	LanguagePython  Language = "python"
	LanguageRust    Language = "rust"
	LanguageJava    Language = "java"
	LanguageRuby    Language = "ruby"
	LanguageGeneric Language = "generic"
)

// templateData feeds the Dockerfile templates
type templateData struct {
	Name string
	// Entry is the main source file relative to the build context, if known
	Entry string
	// Build selects a variant within a language (e.g. gradle vs maven)
	Build string
}

// funcs renders exec-form arguments as JSON strings
var funcs = template.FuncMap{
	"json": func(s string) (string, error) {
		b, err := json.Marshal(s)
		return string(b), err
	},
}

func parse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var dockerfiles = map[Language]*template.Template{
	LanguageGo: parse("go", `FROM golang:1.24-alpine AS build
WORKDIR /src
COPY . .
RUN if [ -f go.mod ]; then go mod download; else go mod init {{.Name}}; fi
RUN CGO_ENABLED=0 go build -o /out/{{.Name}} .

FROM alpine:3.20
COPY --from=build /out/{{.Name}} /usr/local/bin/{{.Name}}
ENTRYPOINT [{{json (print "/usr/local/bin/" .Name)}}]
`),

	LanguageNode: parse("node", `FROM node:22-alpine
WORKDIR /app
COPY package*.json ./
RUN if [ -f package.json ]; then npm install --omit=dev; fi
COPY . .
{{- if .Entry}}
CMD ["node", {{json .Entry}}]
{{- else}}
CMD ["npm", "start"]
{{- end}}
`),

	LanguagePython: parse("python", `FROM python:3.12-slim
WORKDIR /app
COPY . .
{{- if eq .Build "pyproject"}}
RUN pip install --no-cache-dir .
{{- else if eq .Build "requirements"}}
RUN pip install --no-cache-dir -r requirements.txt
{{- end}}
CMD ["python", {{json (or .Entry "main.py")}}]
`),

	LanguageRust: parse("rust", `FROM rust:1-slim AS build
WORKDIR /src
COPY . .
RUN cargo build --release

FROM debian:bookworm-slim
COPY --from=build /src/target/release/{{.Name}} /usr/local/bin/{{.Name}}
ENTRYPOINT [{{json (print "/usr/local/bin/" .Name)}}]
`),

	LanguageJava: parse("java", `{{if eq .Build "gradle" -}}
FROM gradle:8-jdk21 AS build
WORKDIR /src
COPY . .
RUN gradle build --no-daemon -x test
RUN cp build/libs/*.jar /tmp/app.jar
{{- else -}}
FROM maven:3-eclipse-temurin-21 AS build
WORKDIR /src
COPY . .
RUN mvn -q package -DskipTests
RUN cp target/*.jar /tmp/app.jar
{{- end}}

FROM eclipse-temurin:21-jre
COPY --from=build /tmp/app.jar /app/app.jar
ENTRYPOINT ["java", "-jar", "/app/app.jar"]
`),

	LanguageRuby: parse("ruby", `FROM ruby:3.3-slim
WORKDIR /app
COPY . .
RUN if [ -f Gemfile ]; then bundle install; fi
CMD ["ruby", {{json (or .Entry "main.rb")}}]
`),

	LanguageGeneric: parse("generic", `FROM debian:bookworm-slim
WORKDIR /app
COPY . .
CMD ["sh", "-c", "ls -la /app"]
`),
}

func renderDockerfile(lang Language, data templateData) ([]byte, error) {
	tmpl, ok := dockerfiles[lang]
	if !ok {
		tmpl = dockerfiles[LanguageGeneric]
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Command smoke exercises a running API end to end: it registers three
// accounts, opens an incident as the student, assigns it as the admin and
// walks it to resuelto as the worker.
//
// Usage:
//
//	smoke [-base http://localhost:8080]
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "API base URL")
	flag.Parse()

	c := &client{base: *base, http: &http.Client{Timeout: 10 * time.Second}}
	suffix := time.Now().UnixNano() % 1_000_000

	student := fmt.Sprintf("smoke-alumna-%d@utec.edu.pe", suffix)
	admin := fmt.Sprintf("smoke-jefa-%d@admin.utec.edu.pe", suffix)
	worker := fmt.Sprintf("smoke-tecnico-%d@gmail.com", suffix)

	c.register(student, "Alumna Smoke", "")
	c.register(admin, "Jefa Smoke", "")
	c.register(worker, "Tecnico Smoke", "TI")

	inc := c.createIncident(student)
	fmt.Printf("created incident %s estado=%s\n", inc["incidente_id"], inc["estado"])

	id := inc["incidente_id"].(string)
	inc = c.putJSON(admin, "/incidentes/"+id+"/asignar", map[string]string{"trabajador_email": worker})
	fmt.Printf("assigned estado=%s asignado_a=%s\n", inc["estado"], inc["asignado_a"])

	inc = c.putJSON(worker, "/incidentes/"+id+"/estado", map[string]string{"estado": "en_proceso"})
	fmt.Printf("in progress estado=%s\n", inc["estado"])

	inc = c.putJSON(worker, "/incidentes/"+id+"/estado", map[string]string{"estado": "resuelto"})
	fmt.Printf("resolved estado=%s\n", inc["estado"])

	fmt.Println("smoke ok")
}

type client struct {
	base string
	http *http.Client
}

func (c *client) register(email, name, specialty string) {
	body := map[string]string{
		"email":    email,
		"nombre":   name,
		"password": "smoke-password",
	}
	if specialty != "" {
		body["especialidad"] = specialty
	}
	resp := c.do(http.MethodPost, "/auth/register", "", body)
	if resp.StatusCode != http.StatusCreated {
		fail("register %s: status %d", email, resp.StatusCode)
	}
	drain(resp)
}

func (c *client) createIncident(email string) map[string]any {
	resp := c.do(http.MethodPost, "/incidentes", email, map[string]string{
		"titulo":           "Smoke: luz fundida",
		"descripcion":      "Prueba de humo del flujo completo",
		"tipo":             "electrico",
		"piso":             "2",
		"lugar_especifico": "sala de estudio",
	})
	if resp.StatusCode != http.StatusCreated {
		fail("create incident: status %d", resp.StatusCode)
	}
	return decode(resp)
}

func (c *client) putJSON(email, path string, body any) map[string]any {
	resp := c.do(http.MethodPut, path, email, body)
	if resp.StatusCode != http.StatusOK {
		fail("PUT %s: status %d", path, resp.StatusCode)
	}
	return decode(resp)
}

func (c *client) do(method, path, email string, body any) *http.Response {
	data, err := json.Marshal(body)
	if err != nil {
		fail("marshal: %v", err)
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(data))
	if err != nil {
		fail("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req.Header.Set("X-User-Email", email)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		fail("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fail("decode: %v", err)
	}
	return out
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "smoke: "+format+"\n", args...)
	os.Exit(1)
}

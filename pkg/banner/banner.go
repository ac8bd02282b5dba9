package banner

import (
	"fmt"

	"animbridge/pkg/config"
)

const banner = `
 █████╗ ███╗   ██╗██╗███╗   ███╗██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗
██╔══██╗████╗  ██║██║████╗ ████║██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
███████║██╔██╗ ██║██║██╔████╔██║██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗
██╔══██║██║╚██╗██║██║██║╚██╔╝██║██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝
██║  ██║██║ ╚████║██║██║ ╚═╝ ██║██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗
╚═╝  ╚═╝╚═╝  ╚═══╝╚═╝╚═╝     ╚═╝╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝
`

// PrintWithEff prints the startup banner from the effective configuration.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	if dbPath != "" {
		fmt.Printf("DB Path:  %s\n", dbPath)
	} else {
		fmt.Println("DB Path:  (in-memory, threads lost on restart)")
	}
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", src)
	if eff.Config != nil {
		if eff.Config.Backend.URL != "" {
			fmt.Printf("Backend:  %s\n", eff.Config.Backend.URL)
		} else {
			fmt.Println("Backend:  NOT CONFIGURED (set BACKEND_SERVICE_URL)")
		}
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST   /thread/new           - Start a thread and stream generation (SSE)")
	fmt.Println("POST   /thread/{id}          - Continue a thread and stream generation (SSE)")
	fmt.Println("GET    /thread/{id}          - Fetch a thread")
	fmt.Println("GET    /thread/{id}/artifact - Proxy the rendered artifact")
	fmt.Println("DELETE /thread/{id}          - Delete a thread")
	fmt.Println("DELETE /thread/all           - Delete every thread")
	fmt.Println("POST   /generate             - One-shot synchronous generation")

	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -N -X POST 'http://localhost%s/thread/new' -d '{\"messages\":[{\"role\":\"human\",\"content\":\"a bouncing ball\"}]}'\n", portSuffix(addr))
	fmt.Printf("curl 'http://localhost%s/thread/<id>'\n", portSuffix(addr))

	fmt.Println("\n== Production? ================================================")
	if eff.Config != nil {
		fe := len(eff.Config.Security.APIKeys.Frontend)
		ak := len(eff.Config.Security.APIKeys.Admin)
		if fe > 0 {
			fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
		} else {
			fmt.Println("- Frontend API keys: MISSING (service runs open)")
		}
		if ak > 0 {
			fmt.Printf("- Admin API keys: OK (%d)\n", ak)
		} else {
			fmt.Println("- Admin API keys: MISSING (admin routes run open)")
		}
		if eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
			fmt.Println("- TLS: configured")
		} else {
			fmt.Println("- TLS: unconfigured")
		}
		if eff.Config.Retention.Enabled {
			fmt.Printf("- Retention: enabled (cron=%s)\n", eff.Config.Retention.Cron)
		} else {
			fmt.Println("- Retention: disabled")
		}
	}

	fmt.Println("\n== Logs: ======================================================")
}

func portSuffix(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return ":8080"
}

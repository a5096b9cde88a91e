// Command helpdesk is the SmartCall terminal client: authenticate, open
// chamados and chat with the support agent (or the technician the
// chamado was escalated to).
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/smartcall/helpdesk-go/internal/chat"
	"github.com/smartcall/helpdesk-go/internal/config"
	"github.com/smartcall/helpdesk-go/internal/gateway"
	"github.com/smartcall/helpdesk-go/internal/model/ticket"
)

const usage = `usage: helpdesk [flags] <command>

commands:
  login                 authenticate and store the session token
  register              create an account
  logout                invalidate and clear the stored token
  tickets               list your chamados
  new <description>     open a chamado (minimum 10 characters)
  chat <id>             open the chat of a chamado
`

func main() {
	serverURL := pflag.String("server", "", "API base URL (overrides SMARTCALL_API_URL)")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("failed to load configuration: %v", err)
	}
	if *serverURL != "" {
		cfg.Client.BaseURL = *serverURL
	}

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	app := newApp(cfg)
	if err := app.run(context.Background(), args); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "helpdesk: "+format+"\n", args...)
	os.Exit(1)
}

type app struct {
	cfg    *config.Config
	client *gateway.Client
	creds  gateway.CredentialStore
	stdin  *bufio.Reader
}

func newApp(cfg *config.Config) *app {
	a := &app{
		cfg:    cfg,
		client: gateway.NewClient(cfg.Client.BaseURL),
		creds:  gateway.CredentialStore{Dir: gateway.DefaultCredentialDir()},
		stdin:  bufio.NewReader(os.Stdin),
	}
	// A 401 means the token expired or the account is gone: drop the
	// stored credential so the next command asks for a fresh login.
	a.client.OnUnauthorized = func() {
		_ = a.creds.Clear()
		fmt.Fprintln(os.Stderr, "sessão expirada, faça login novamente")
	}
	return a
}

func (a *app) run(ctx context.Context, args []string) error {
	switch cmd := args[0]; cmd {
	case "login":
		return a.login(ctx)
	case "register":
		return a.register(ctx)
	case "logout":
		return a.logout(ctx)
	case "tickets":
		return a.requireAuth(func() error { return a.listTickets(ctx) })
	case "new":
		if len(args) < 2 {
			return errors.New("uso: helpdesk new <descrição do problema>")
		}
		description := strings.Join(args[1:], " ")
		return a.requireAuth(func() error { return a.newTicket(ctx, description) })
	case "chat":
		if len(args) != 2 {
			return errors.New("uso: helpdesk chat <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("id de chamado inválido: %q", args[1])
		}
		return a.requireAuth(func() error { return a.openChat(ctx, id) })
	default:
		return fmt.Errorf("comando desconhecido: %q", cmd)
	}
}

// requireAuth loads the stored token before running an authenticated
// command.
func (a *app) requireAuth(fn func() error) error {
	creds, err := a.creds.Load()
	if errors.Is(err, gateway.ErrNoCredentials) {
		return errors.New("você não está autenticado, rode: helpdesk login")
	}
	if err != nil {
		return err
	}
	a.client.SetToken(creds.Token)
	return fn()
}

func (a *app) login(ctx context.Context) error {
	email, err := a.prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := a.promptPassword("Senha: ")
	if err != nil {
		return err
	}

	session, err := a.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login falhou: %w", err)
	}
	if err := a.creds.Save(gateway.Credentials{Token: session.Token, User: session.User}); err != nil {
		return fmt.Errorf("salvar credenciais: %w", err)
	}

	fmt.Printf("Bem-vindo, %s!\n", displayName(session.User))
	return nil
}

func (a *app) register(ctx context.Context) error {
	fullName, err := a.prompt("Nome completo: ")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := a.promptPassword("Senha: ")
	if err != nil {
		return err
	}
	confirm, err := a.promptPassword("Confirme a senha: ")
	if err != nil {
		return err
	}

	session, err := a.client.Register(ctx, email, password, confirm, fullName)
	if err != nil {
		return fmt.Errorf("cadastro falhou: %w", err)
	}
	if err := a.creds.Save(gateway.Credentials{Token: session.Token, User: session.User}); err != nil {
		return fmt.Errorf("salvar credenciais: %w", err)
	}

	fmt.Printf("Conta criada. Bem-vindo, %s!\n", displayName(session.User))
	return nil
}

func (a *app) logout(ctx context.Context) error {
	// Clear local credentials even when the server call fails.
	defer func() {
		if err := a.creds.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "aviso: falha ao limpar credenciais: %v\n", err)
		}
	}()

	creds, err := a.creds.Load()
	if errors.Is(err, gateway.ErrNoCredentials) {
		fmt.Println("Você já estava desconectado.")
		return nil
	}
	if err == nil {
		a.client.SetToken(creds.Token)
		if err := a.client.Logout(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "aviso: logout remoto falhou: %v\n", err)
		}
	}

	fmt.Println("Sessão encerrada.")
	return nil
}

func (a *app) listTickets(ctx context.Context) error {
	tickets, err := a.client.ListTickets(ctx)
	if err != nil {
		return fmt.Errorf("listar chamados: %w", err)
	}
	if len(tickets) == 0 {
		fmt.Println("Nenhum chamado aberto. Crie um com: helpdesk new <descrição>")
		return nil
	}

	for _, t := range tickets {
		line := fmt.Sprintf("#%d  [%s]  %s", t.ID, t.Status, t.Title)
		if t.TechnicianName != "" {
			line += "  (técnico: " + t.TechnicianName + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func (a *app) newTicket(ctx context.Context, description string) error {
	fmt.Println("Criando chamado, aguarde a resposta do assistente...")
	t, _, err := a.client.CreateTicket(ctx, description)
	if err != nil {
		return fmt.Errorf("criar chamado: %w", err)
	}

	fmt.Printf("Chamado #%d criado: %s\n", t.ID, t.Title)
	return a.openChat(ctx, t.ID)
}

func (a *app) openChat(ctx context.Context, ticketID int64) error {
	listener := newChatPrinter()
	session, err := chat.Open(ctx, a.client, ticketID, chat.Options{
		WarmupDelay:  a.cfg.Client.WarmupDelay,
		PollInterval: a.cfg.Client.PollInterval,
		Listener:     listener,
	})
	if err != nil {
		return err
	}
	defer session.Close()
	listener.source = session.Messages

	t := session.Ticket()
	fmt.Printf("\nChamado #%d — %s [%s]\n", t.ID, t.Title, t.Status)
	listener.printHistory(session.Messages())
	fmt.Println("Comandos: /resolver, /tecnico, /sair")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/sair":
			return nil
		case "/resolver":
			if err := session.Resolve(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "erro: %v\n", err)
				continue
			}
			fmt.Println("Chamado marcado como resolvido. Obrigado por usar o SmartCall!")
			return nil
		case "/tecnico":
			if err := session.Escalate(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "erro: %v\n", err)
			}
			continue
		}

		if err := session.Send(ctx, line); err != nil {
			if errors.Is(err, chat.ErrTicketResolved) {
				// The listener already printed the resolved notice.
				return nil
			}
			fmt.Fprintf(os.Stderr, "erro: %v\n", err)
		}
	}
}

func (a *app) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := a.stdin.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *app) promptPassword(label string) (string, error) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func displayName(u gateway.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// chatPrinter renders session events on the terminal. Events arrive from
// both the poll goroutine and the send path, so printing serializes on a
// mutex.
type chatPrinter struct {
	mu      sync.Mutex
	printed map[int64]struct{}
	typing  bool

	// source yields the current timeline; installed right after the
	// session opens, before the first poll cycle fires.
	source func() []ticket.Message
}

func newChatPrinter() *chatPrinter {
	return &chatPrinter{printed: make(map[int64]struct{})}
}

// printHistory renders the initial timeline once, marking everything as
// seen.
func (p *chatPrinter) printHistory(msgs []ticket.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.printLocked(m, true)
	}
}

func (p *chatPrinter) printLocked(m ticket.Message, includeUser bool) {
	if !m.Provisional() {
		if _, seen := p.printed[m.ID]; seen {
			return
		}
		p.printed[m.ID] = struct{}{}
	}

	switch m.Sender {
	case ticket.SenderUser:
		// Live user messages are already on screen as typed input; only
		// history renders them.
		if includeUser {
			fmt.Printf("  Você: %s\n", m.Text)
		}
	case ticket.SenderTechnician:
		fmt.Printf("  [TÉCNICO] %s\n", m.Text)
	default:
		fmt.Printf("  Agente: %s\n", m.Text)
	}
}

// TimelineChanged prints whatever arrived since the last render.
func (p *chatPrinter) TimelineChanged() {
	if p.source == nil {
		return
	}
	msgs := p.source()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.printLocked(m, false)
	}
}

func (p *chatPrinter) StatusChanged(t ticket.Ticket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t.TechnicianName != "" {
		fmt.Printf("\n* status do chamado: %s (técnico: %s)\n> ", t.Status, t.TechnicianName)
		return
	}
	fmt.Printf("\n* status do chamado: %s\n> ", t.Status)
}

func (p *chatPrinter) TypingChanged(active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if active && !p.typing {
		fmt.Println("  agente digitando...")
	}
	p.typing = active
}

func (p *chatPrinter) Notice(_ chat.NoticeKind, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Printf("\n* %s\n", text)
}

package console

import "strings"

type CommandKind int

const (
	CmdEmpty CommandKind = iota
	CmdSend
	CmdJoin
	CmdHome
	CmdCreate
	CmdChannels
	CmdWho
	CmdHelp
	CmdQuit
	CmdUnknown
)

// Command is one parsed input line.
type Command struct {
	Kind        CommandKind
	Arg         string
	Description string
	Private     bool
}

// Parse turns an input line into a Command. Lines that do not start with "/"
// are messages.
func Parse(line string) Command {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{Kind: CmdEmpty}
	}
	if !strings.HasPrefix(line, "/") {
		return Command{Kind: CmdSend, Arg: line}
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "/join", "/j":
		return Command{Kind: CmdJoin, Arg: rest}
	case "/home":
		return Command{Kind: CmdHome}
	case "/create":
		return parseCreate(rest)
	case "/channels", "/list":
		return Command{Kind: CmdChannels}
	case "/who":
		return Command{Kind: CmdWho}
	case "/help", "/?":
		return Command{Kind: CmdHelp}
	case "/quit", "/exit":
		return Command{Kind: CmdQuit}
	}
	return Command{Kind: CmdUnknown, Arg: name}
}

// parseCreate reads `name [description...] [--private]`. A name with spaces
// must be double quoted.
func parseCreate(rest string) Command {
	cmd := Command{Kind: CmdCreate}
	var words []string
	for _, w := range strings.Fields(rest) {
		if w == "--private" {
			cmd.Private = true
			continue
		}
		words = append(words, w)
	}
	rest = strings.Join(words, " ")

	if strings.HasPrefix(rest, `"`) {
		if name, desc, ok := strings.Cut(rest[1:], `"`); ok {
			cmd.Arg = strings.TrimSpace(name)
			cmd.Description = strings.TrimSpace(desc)
			return cmd
		}
	}
	name, desc, _ := strings.Cut(rest, " ")
	cmd.Arg = name
	cmd.Description = strings.TrimSpace(desc)
	return cmd
}

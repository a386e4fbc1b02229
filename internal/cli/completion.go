package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/samber/lo"
)

// CompletionCmd generates shell completions
type CompletionCmd struct {
	Shell string `arg:"" enum:"bash,zsh,fish" help:"Shell type (bash, zsh, fish)"`
}

// commandNode is what completion needs to know about one command path.
type commandNode struct {
	Subcommands []string
	Flags       []string
	// TakesFile is set when the command has a positional argument.
	TakesFile bool
}

type commandIndex struct {
	// Nodes is keyed by command path joined with "__"; the root is "".
	Nodes map[string]commandNode
	// Enums maps a flag token (--encoding, -e) to its allowed values.
	Enums map[string][]string
}

// Run executes the completion command. The kong context keeps the generated
// script in sync with the real command tree.
func (c *CompletionCmd) Run(globals *Globals, ctx *kong.Context) error {
	var model *kong.Node
	if ctx != nil && ctx.Model != nil {
		model = ctx.Model.Node
	}
	idx := indexCommands(model)

	var script string
	switch c.Shell {
	case "bash":
		script = bashCompletion(idx)
	case "zsh":
		script = zshCompletion(idx)
	case "fish":
		script = fishCompletion(idx)
	default:
		return fmt.Errorf("unsupported shell: %s", c.Shell)
	}
	_, err := fmt.Fprint(globals.Stdout, script)
	return err
}

// encodingFlags complete with the transcript encodings even though they are
// free-form strings on the command line.
var encodingFlags = []string{"--encoding", "-e"}

func indexCommands(model *kong.Node) commandIndex {
	idx := commandIndex{Nodes: map[string]commandNode{}, Enums: map[string][]string{}}
	for _, f := range encodingFlags {
		idx.Enums[f] = []string{"json", "asciicast", "yaml", "cbor", "plist"}
	}
	if model == nil {
		idx.Nodes[""] = commandNode{}
		return idx
	}

	var walk func(n *kong.Node, path []string)
	walk = func(n *kong.Node, path []string) {
		children := lo.Filter(n.Children, func(child *kong.Node, _ int) bool {
			return child != nil && child.Type == kong.CommandNode && !child.Hidden
		})

		var subs []string
		for _, child := range children {
			subs = append(subs, child.Name)
			subs = append(subs, child.Aliases...)
		}

		var flags []string
		for _, group := range n.AllFlags(true) {
			for _, f := range group {
				if f == nil || f.Hidden {
					continue
				}
				tokens := flagTokens(f)
				flags = append(flags, tokens...)
				if values := enumValues(f.Enum); len(values) > 0 {
					for _, t := range tokens {
						if _, ok := idx.Enums[t]; !ok {
							idx.Enums[t] = values
						}
					}
				}
			}
		}

		idx.Nodes[strings.Join(path, "__")] = commandNode{
			Subcommands: sortedUnique(subs),
			Flags:       sortedUnique(flags),
			TakesFile:   len(n.Positional) > 0,
		}
		for _, child := range children {
			walk(child, append(append([]string{}, path...), child.Name))
		}
	}
	walk(model, nil)
	return idx
}

func flagTokens(f *kong.Flag) []string {
	tokens := []string{"--" + f.Name}
	if f.Short != 0 {
		tokens = append(tokens, "-"+string(f.Short))
	}
	for _, a := range f.Aliases {
		if a = strings.TrimSpace(a); a != "" {
			tokens = append(tokens, "--"+a)
		}
	}
	return tokens
}

func enumValues(raw string) []string {
	values := lo.Map(strings.Split(raw, ","), func(v string, _ int) string { return strings.TrimSpace(v) })
	return lo.Compact(values)
}

func sortedUnique(in []string) []string {
	out := lo.Uniq(lo.Compact(lo.Map(in, func(s string, _ int) string { return strings.TrimSpace(s) })))
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func bashCompletion(idx commandIndex) string {
	var sb strings.Builder
	sb.WriteString(`# ttycast bash completion script
# Add to ~/.bashrc:
#   eval "$(ttycast completion bash)"

_ttycast_completions() {
    local cur prev words cword
    _init_completion || return

    local cmdpath="" candidate="" i
    for ((i=1; i < cword; i++)); do
        local w=${words[i]}
        [[ -z "${w}" || "${w}" == -* ]] && continue
        candidate="${candidate:+${candidate}__}${w}"
        case "${candidate}" in
`)
	for _, path := range sortedKeys(idx.Nodes) {
		if path != "" {
			fmt.Fprintf(&sb, "            %s) cmdpath=\"${candidate}\" ;;\n", path)
		}
	}
	sb.WriteString(`            *) break ;;
        esac
    done

    case "${prev}" in
`)
	for _, token := range sortedKeys(idx.Enums) {
		fmt.Fprintf(&sb, "        %s)\n            COMPREPLY=($(compgen -W \"%s\" -- \"${cur}\"))\n            return\n            ;;\n",
			token, strings.Join(idx.Enums[token], " "))
	}
	sb.WriteString(`        -o|--output|--output-dir|--state-file)
            _filedir
            return
            ;;
    esac

    local subcommands="" flags="" files=0
    case "${cmdpath}" in
`)
	for _, path := range sortedKeys(idx.Nodes) {
		node := idx.Nodes[path]
		files := 0
		if node.TakesFile {
			files = 1
		}
		fmt.Fprintf(&sb, "        \"%s\")\n            subcommands=\"%s\"\n            flags=\"%s\"\n            files=%d\n            ;;\n",
			path, strings.Join(node.Subcommands, " "), strings.Join(node.Flags, " "), files)
	}
	sb.WriteString(`    esac

    if [[ "${cur}" == -* ]]; then
        COMPREPLY=($(compgen -W "${flags}" -- "${cur}"))
    elif [[ -n "${subcommands}" ]]; then
        COMPREPLY=($(compgen -W "${subcommands}" -- "${cur}"))
    elif (( files )); then
        _filedir
    fi
}

complete -F _ttycast_completions ttycast
`)
	return sb.String()
}

func zshCompletion(idx commandIndex) string {
	var sb strings.Builder
	sb.WriteString(`#compdef ttycast
# ttycast zsh completion script
# Add to ~/.zshrc:
#   eval "$(ttycast completion zsh)"

_ttycast() {
  local cur="${words[CURRENT]}" prev="${words[CURRENT-1]}"
  local cmdpath="" candidate="" i
  for ((i=2; i < CURRENT; i++)); do
    local w="${words[i]}"
    [[ -z "${w}" || "${w}" == -* ]] && continue
    candidate="${candidate:+${candidate}__}${w}"
    case "${candidate}" in
`)
	for _, path := range sortedKeys(idx.Nodes) {
		if path != "" {
			fmt.Fprintf(&sb, "      %s) cmdpath=\"${candidate}\" ;;\n", path)
		}
	}
	sb.WriteString(`      *) break ;;
    esac
  done

  case "${prev}" in
`)
	for _, token := range sortedKeys(idx.Enums) {
		fmt.Fprintf(&sb, "    %s) compadd -- %s; return ;;\n", token, strings.Join(idx.Enums[token], " "))
	}
	sb.WriteString(`    -o|--output|--output-dir|--state-file) _files; return ;;
  esac

  local -a subcommands flags
  local files=0
  case "${cmdpath}" in
`)
	for _, path := range sortedKeys(idx.Nodes) {
		node := idx.Nodes[path]
		files := 0
		if node.TakesFile {
			files = 1
		}
		fmt.Fprintf(&sb, "    \"%s\") subcommands=(%s); flags=(%s); files=%d ;;\n",
			path, strings.Join(node.Subcommands, " "), strings.Join(node.Flags, " "), files)
	}
	sb.WriteString(`  esac

  if [[ "${cur}" == -* ]]; then
    compadd -- ${flags[@]}
  elif (( ${#subcommands[@]} > 0 )); then
    compadd -- ${subcommands[@]}
  elif (( files )); then
    _files
  fi
}

compdef _ttycast ttycast
`)
	return sb.String()
}

func fishCompletion(idx commandIndex) string {
	var sb strings.Builder
	sb.WriteString(`# ttycast fish completion script
# Save as ~/.config/fish/completions/ttycast.fish

`)
	root := idx.Nodes[""]
	for _, cmd := range root.Subcommands {
		fmt.Fprintf(&sb, "complete -c ttycast -n \"__fish_use_subcommand\" -f -a \"%s\"\n", cmd)
	}
	for _, path := range sortedKeys(idx.Nodes) {
		if path == "" || strings.Contains(path, "__") {
			continue
		}
		for _, sub := range idx.Nodes[path].Subcommands {
			fmt.Fprintf(&sb, "complete -c ttycast -n \"__fish_seen_subcommand_from %s\" -f -a \"%s\"\n", path, sub)
		}
	}
	for _, flag := range root.Flags {
		if !strings.HasPrefix(flag, "--") {
			continue
		}
		long := strings.TrimPrefix(flag, "--")
		if values, ok := idx.Enums[flag]; ok {
			fmt.Fprintf(&sb, "complete -c ttycast -l %s -xa \"%s\"\n", long, strings.Join(values, " "))
			continue
		}
		fmt.Fprintf(&sb, "complete -c ttycast -l %s\n", long)
	}
	fmt.Fprintf(&sb, "complete -c ttycast -l encoding -s e -xa \"%s\"\n", strings.Join(idx.Enums["--encoding"], " "))
	return sb.String()
}

package cli

import "fmt"

// BashCompletion completes itemctl subcommands and flags in bash.
const BashCompletion = `#!/bin/bash
# Bash completion for itemctl

_itemctl_completion() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    local commands="list get create update delete events watch mirror completion help"
    local flags="-url -resource -token"

    case "${prev}" in
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- ${cur}) )
            return 0
            ;;
        -url|-resource|-token)
            return 0
            ;;
        *)
            ;;
    esac

    COMPREPLY=( $(compgen -W "${commands} ${flags}" -- ${cur}) )
    return 0
}

complete -F _itemctl_completion itemctl
`

// ZshCompletion completes itemctl subcommands and flags in zsh.
const ZshCompletion = `#compdef itemctl

_itemctl() {
    local -a commands
    commands=(
        'list:List every item'
        'get:Show one item'
        'create:Create an item from key=value attributes'
        'update:Replace an item'\''s attributes'
        'delete:Delete an item'
        'events:Show recent change events'
        'watch:Stream change events'
        'mirror:Keep a live local copy'
        'completion:Generate shell completion script'
        'help:Show help'
    )

    local -a flags
    flags=(
        '-url[Gateway base URL]:url:'
        '-resource[Resource path segment]:resource:'
        '-token[Bearer token]:token:'
    )

    _arguments -C \
        '1: :->command' \
        '*:: :->args' \
        $flags

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                completion)
                    _values 'shell' bash zsh
                    ;;
            esac
            ;;
    esac
}

_itemctl "$@"
`

func doCompletion(args []string) int {
	if len(args) != 1 {
		fail("usage: itemctl completion <bash|zsh>")
		return 2
	}
	switch args[0] {
	case "bash":
		fmt.Print(BashCompletion)
	case "zsh":
		fmt.Print(ZshCompletion)
	default:
		fail("unsupported shell: " + args[0] + " (supported: bash, zsh)")
		return 2
	}
	return 0
}

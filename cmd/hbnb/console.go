package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/hazyhaar/hbnb/entity"
	"github.com/hazyhaar/hbnb/storage"
)

const prompt = "(hbnb) "

// command is one console verb. It returns true to end the session.
type command struct {
	help string
	run  func(c *console, ctx context.Context, args []string) bool
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"quit": {"Quit command to exit the program", func(*console, context.Context, []string) bool { return true }},
		"EOF": {"EOF command to exit the program", func(c *console, _ context.Context, _ []string) bool {
			fmt.Fprintln(c.out)
			return true
		}},
		"help":   {"List available commands with \"help\" or detailed help with \"help cmd\"", (*console).doHelp},
		"create": {"Creates an entity of the given kind, saves it and prints its id\nUsage: create <Kind>", (*console).doCreate},
		"show":   {"Prints the string form of an entity\nUsage: show <Kind> <id>", (*console).doShow},
		"all":    {"Prints every entity, or every entity of one kind\nUsage: all [Kind]", (*console).doAll},
	}
}

// console is a line-oriented command interpreter over an engine.
type console struct {
	eng *storage.Engine
	out io.Writer

	// afterSave runs after every save the console performs.
	afterSave func(ctx context.Context)
}

func newConsole(eng *storage.Engine, out io.Writer) *console {
	return &console{eng: eng, out: out}
}

// run reads commands from in until quit, end of input or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprint(c.out, prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if c.exec(ctx, line) {
				return nil
			}
		}
	}
}

// exec runs one input line and reports whether the session should end.
func (c *console) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, ok := commands[fields[0]]
	if !ok {
		fmt.Fprintf(c.out, "*** Unknown syntax: %s\n", line)
		return false
	}
	return cmd.run(c, ctx, fields[1:])
}

func (c *console) doHelp(_ context.Context, args []string) bool {
	if len(args) > 0 {
		if cmd, ok := commands[args[0]]; ok {
			fmt.Fprintln(c.out, cmd.help)
		} else {
			fmt.Fprintf(c.out, "*** No help on %s\n", args[0])
		}
		return false
	}
	names := slices.Sorted(maps.Keys(commands))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Documented commands (type help <topic>):")
	fmt.Fprintln(c.out, "========================================")
	fmt.Fprintln(c.out, strings.Join(names, "  "))
	fmt.Fprintln(c.out)
	return false
}

func (c *console) doCreate(ctx context.Context, args []string) bool {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "** class name missing **")
		return false
	}
	m, err := entity.Create(args[0], c.eng)
	if errors.Is(err, storage.ErrUnknownKind) {
		fmt.Fprintln(c.out, "** class doesn't exist **")
		return false
	}
	if err == nil {
		err = m.Save(ctx)
	}
	if err != nil {
		fmt.Fprintf(c.out, "** %v **\n", err)
		return false
	}
	if c.afterSave != nil {
		c.afterSave(ctx)
	}
	fmt.Fprintln(c.out, m.ID())
	return false
}

func (c *console) doShow(_ context.Context, args []string) bool {
	if !c.knownKind(args) {
		return false
	}
	if len(args) < 2 {
		fmt.Fprintln(c.out, "** instance id missing **")
		return false
	}
	obj, ok := c.eng.Get(storage.KeyOf(args[0], args[1]))
	if !ok {
		fmt.Fprintln(c.out, "** no instance found **")
		return false
	}
	fmt.Fprintln(c.out, obj)
	return false
}

func (c *console) doAll(_ context.Context, args []string) bool {
	if len(args) > 0 && !c.knownKind(args) {
		return false
	}
	all := c.eng.All()
	keys := make([]string, 0, len(all))
	for key, obj := range all {
		if len(args) == 0 || obj.Kind() == args[0] {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintln(c.out, all[key])
	}
	return false
}

// knownKind prints the usual diagnostics when args does not start with a
// registered kind.
func (c *console) knownKind(args []string) bool {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "** class name missing **")
		return false
	}
	if !slices.Contains(c.eng.Kinds(), args[0]) {
		fmt.Fprintln(c.out, "** class doesn't exist **")
		return false
	}
	return true
}

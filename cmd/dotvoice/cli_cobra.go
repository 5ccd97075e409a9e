package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotsetgreg/dotvoice/pkg/journal"
	"github.com/dotsetgreg/dotvoice/pkg/profile"
	"github.com/dotsetgreg/dotvoice/pkg/reminders"
	"github.com/dotsetgreg/dotvoice/pkg/tools"
)

func executeCLI() error {
	root := buildRootCommand(true)
	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func buildRootCommand(includeDocsCommand bool) *cobra.Command {
	var showVersion bool

	root := &cobra.Command{
		Use:   "dotvoice",
		Short: "Voice-driven personal assistant with wake word, tools, reminders, and memory",
		Long: strings.TrimSpace(`dotvoice is a voice-first assistant core.

Use CLI commands to onboard, run the voice loop on the console, chat in text,
serve a Discord channel, and manage reminders, notes, protocols, skills, and
the action log.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			_ = cmd.Help()
			return fmt.Errorf("a subcommand is required")
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().BoolVarP(&showVersion, "version", "v", false, "Show build/version metadata")

	root.AddCommand(newOnboardCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newChatCommand())
	root.AddCommand(newGatewayCommand())
	root.AddCommand(newStatusCommand())
	root.AddCommand(newRemindersCommand())
	root.AddCommand(newAuditCommand())
	root.AddCommand(newHistoryCommand())
	root.AddCommand(newNotesCommand())
	root.AddCommand(newProtocolsCommand())
	root.AddCommand(newProfileCommand())
	root.AddCommand(newSkillsCommand())
	root.AddCommand(newVersionCommand())

	if includeDocsCommand {
		docsCmd := newDocsCommand(func() *cobra.Command { return buildRootCommand(false) })
		root.AddCommand(docsCmd)
	}

	return root
}

func newOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "onboard",
		Short:   "Initialize ~/.dotvoice config and data directory",
		Long:    "Write the default configuration and create the data directory for a new dotvoice installation.",
		Example: "  dotvoice onboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return onboard(cmd.OutOrStdout(), cmd.InOrStdin(), force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config without asking")
	return cmd
}

func newRunCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the voice loop on the console",
		Long: strings.TrimSpace(`Greet the user, take a first turn, then keep the wake-word listener and the
reminder scheduler running. Typed lines stand in for speech; assistant speech is
printed with the active voice as its label.`),
		Example: "  dotvoice run --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd(cmd.Context(), debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newChatCommand() *cobra.Command {
	var (
		message string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in text",
		Long:  "Run an interactive text session or send one-shot messages. Turns go through the same orchestrator as voice.",
		Example: strings.Join([]string{
			"  dotvoice chat",
			"  dotvoice chat --message \"remind me to stretch in 20 minutes\"",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return chatCmd(cmd.Context(), cmd.OutOrStdout(), message, debug)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "One-shot message to send to the assistant")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newGatewayCommand() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:     "gateway",
		Short:   "Serve the assistant over Discord",
		Long:    "Start the Discord channel, answer messages as turns, and deliver reminders to the notify chat.",
		Example: "  dotvoice gateway --debug",
		RunE: func(cmd *cobra.Command, args []string) error {
			return gatewayCmd(cmd.Context(), debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show configuration, storage, and balance readiness",
		Example: "  dotvoice status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return statusCmd(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		Example: "  dotvoice version",
		RunE: func(cmd *cobra.Command, args []string) error {
			printVersion()
			return nil
		},
	}
}

func newRemindersCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "reminders",
		Aliases: []string{"reminder"},
		Short:   "Manage scheduled reminders",
	}

	root.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List pending reminders, soonest first",
		Example: "  dotvoice reminders list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReminders(func(book *reminders.Scheduler) error {
				fmt.Fprintln(cmd.OutOrStdout(), book.ListText())
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "add <when> <message...>",
		Short: "Schedule a reminder",
		Long: strings.TrimSpace(`Schedule a reminder. <when> accepts "in N minutes|hours|days", an ISO
timestamp, HH:MM with optional am/pm, or "cron <expression>". Quote it when
it contains spaces.`),
		Args: cobra.MinimumNArgs(2),
		Example: strings.Join([]string{
			"  dotvoice reminders add \"in 20 minutes\" stretch",
			"  dotvoice reminders add 18:30 call mom",
			"  dotvoice reminders add \"cron 0 9 * * 1\" weekly review",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReminders(func(book *reminders.Scheduler) error {
				r, err := book.Add(strings.Join(args[1:], " "), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reminder set for %s (id: %s).\n", r.DueAt.Format("2006-01-02 15:04"), r.ID)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "cancel <id>",
		Aliases: []string{"remove"},
		Short:   "Cancel a reminder by id",
		Args:    cobra.ExactArgs(1),
		Example: "  dotvoice reminders cancel 1a2b3c4d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReminders(func(book *reminders.Scheduler) error {
				if err := book.Cancel(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reminder %s canceled.\n", args[0])
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "clear",
		Short:   "Cancel every reminder",
		Example: "  dotvoice reminders clear",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReminders(func(book *reminders.Scheduler) error {
				fmt.Fprintln(cmd.OutOrStdout(), book.ClearText())
				return nil
			})
		},
	})

	return root
}

func newAuditCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the action log of dispatched tool calls",
	}

	var limit int
	list := &cobra.Command{
		Use:     "list",
		Short:   "Show recent audit records, newest first",
		Example: "  dotvoice audit list --limit 20",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				return auditList(cmd.Context(), cmd.OutOrStdout(), j, limit)
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show")
	root.AddCommand(list)

	root.AddCommand(&cobra.Command{
		Use:     "clear",
		Short:   "Delete every audit record",
		Example: "  dotvoice audit clear",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				if err := j.ClearAudit(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Action log cleared.")
				return nil
			})
		},
	})

	return root
}

func newHistoryCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "history",
		Short: "Inspect command history and the session log",
	}

	var (
		limit   int
		source  string
		session bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "Show recent commands or session log entries",
		Example: strings.Join([]string{
			"  dotvoice history list",
			"  dotvoice history list --source voice",
			"  dotvoice history list --session",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				if session {
					return sessionLogList(cmd.Context(), cmd.OutOrStdout(), j, limit)
				}
				return historyList(cmd.Context(), cmd.OutOrStdout(), j, limit, source)
			})
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	list.Flags().StringVar(&source, "source", "", "Filter commands by source (voice, text, channel)")
	list.Flags().BoolVar(&session, "session", false, "Show the session log instead of commands")
	root.AddCommand(list)

	var clearSession bool
	clearCmd := &cobra.Command{
		Use:     "clear",
		Short:   "Delete command history (and the session log with --session)",
		Example: "  dotvoice history clear --session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				if err := j.ClearHistory(cmd.Context()); err != nil {
					return err
				}
				if clearSession {
					if err := j.ClearSessionLog(cmd.Context()); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
				return nil
			})
		},
	}
	clearCmd.Flags().BoolVar(&clearSession, "session", false, "Also clear the session log")
	root.AddCommand(clearCmd)

	return root
}

func newNotesCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "notes",
		Aliases: []string{"note"},
		Short:   "Manage saved notes",
	}

	root.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List notes, newest first",
		Example: "  dotvoice notes list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				return notesList(cmd.Context(), cmd.OutOrStdout(), j)
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "add <text...>",
		Short:   "Save a note",
		Args:    cobra.MinimumNArgs(1),
		Example: "  dotvoice notes add buy more coffee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				n, err := j.AddNote(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note saved (id: %s).\n", n.ID)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a note by id",
		Args:    cobra.ExactArgs(1),
		Example: "  dotvoice notes delete 1a2b3c4d",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				ok, err := j.DeleteNote(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no note with id %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Note %s deleted.\n", args[0])
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "clear",
		Short:   "Delete every note",
		Example: "  dotvoice notes clear",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(cmd.Context(), func(j *journal.SQLiteStore) error {
				if err := j.ClearNotes(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All notes deleted.")
				return nil
			})
		},
	})

	return root
}

func newProtocolsCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "protocols",
		Aliases: []string{"protocol"},
		Short:   "Edit the named multi-step protocols",
	}

	root.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List protocols and their steps",
		Example: "  dotvoice protocols list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *tools.Catalog) error {
				protocolsList(cmd.OutOrStdout(), c)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "set <name> <step>...",
		Short: "Create or replace a protocol",
		Long: strings.TrimSpace(`Create or replace a protocol. Each step is an application name from the
catalog, "url:<address>", "app:<name>", or "raw:<shell command>".`),
		Args:    cobra.MinimumNArgs(2),
		Example: "  dotvoice protocols set focus \"app:code\" \"url:https://music.example.com/focus\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *tools.Catalog) error {
				if err := c.SetProtocol(args[0], args[1:]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Protocol %s saved with %d steps.\n", args[0], len(args)-1)
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a protocol",
		Args:    cobra.ExactArgs(1),
		Example: "  dotvoice protocols delete focus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(c *tools.Catalog) error {
				ok, err := c.DeleteProtocol(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no protocol named %s", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Protocol %s deleted.\n", args[0])
				return nil
			})
		},
	})

	return root
}

func newProfileCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the user profile",
	}

	root.AddCommand(&cobra.Command{
		Use:     "show",
		Short:   "Show the persisted profile",
		Example: "  dotvoice profile show",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfile(func(p *profile.Context) error {
				profileShow(cmd.OutOrStdout(), p.Snapshot())
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "name <name...>",
		Short:   "Set how the assistant addresses the user",
		Args:    cobra.MinimumNArgs(1),
		Example: "  dotvoice profile name Ada",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfile(func(p *profile.Context) error {
				profileShow(cmd.OutOrStdout(), p.SetUserName(strings.Join(args, " ")))
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "wake-words <word>...",
		Short:   "Replace the wake words",
		Args:    cobra.MinimumNArgs(1),
		Example: "  dotvoice profile wake-words \"hey mavrick\" computer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfile(func(p *profile.Context) error {
				profileShow(cmd.OutOrStdout(), p.SetWakeWords(args))
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "persona <name>",
		Short:   "Switch the active persona",
		Args:    cobra.ExactArgs(1),
		Example: "  dotvoice profile persona nova",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfile(func(p *profile.Context) error {
				profileShow(cmd.OutOrStdout(), p.SwitchPersona(args[0]))
				return nil
			})
		},
	})

	return root
}

func newSkillsCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "skills",
		Short: "Install, remove, and inspect skills",
	}

	root.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "List loadable skills across the skill roots",
		Example: "  dotvoice skills list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return skillsList(cmd.OutOrStdout(), cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "install <path>",
		Short:   "Install a skill directory into the user skill root",
		Args:    cobra.ExactArgs(1),
		Example: "  dotvoice skills install ./weather",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return skillsInstall(cmd.OutOrStdout(), cfg, args[0])
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "remove <skill>",
		Aliases: []string{"uninstall"},
		Short:   "Remove an installed skill",
		Args:    cobra.ExactArgs(1),
		Example: "  dotvoice skills remove weather",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return skillsRemove(cmd.OutOrStdout(), cfg, args[0])
		},
	})

	return root
}

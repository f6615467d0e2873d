package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gemini-learn/voicetutor/pkg/providers/genai"
	"github.com/gemini-learn/voicetutor/pkg/providers/live"
	"github.com/gemini-learn/voicetutor/pkg/tutor"
)

func main() {
	textModel := flag.String("model", genai.DefaultTextModel, "text model for briefing and feedback")
	liveModel := flag.String("live-model", live.DefaultModel, "live conversation model")
	recordPath := flag.String("record", "", "save captured microphone audio to this WAV file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		log.Fatal("Error: GEMINI_API_KEY must be set.")
	}

	logger := newLogger(*logLevel)
	cfg := tutor.DefaultConfig()

	client := genai.NewClient(apiKey, *textModel)
	fmt.Println("Checking API access...")
	if err := client.CheckStatus(context.Background()); err != nil {
		log.Fatalf("Error: %s", genai.UserMessage(err))
	}

	engine, err := newAudioEngine(cfg.OutputSampleRate, cfg.Channels)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()
	if *recordPath != "" {
		engine.RecordTo(*recordPath, cfg.InputSampleRate, cfg.Channels)
	}

	dialer := live.NewDialer(apiKey, *liveModel)
	session := tutor.NewSession(engine, dialer, engine.Sink(), cfg, logger)
	cache := tutor.NewTTSCache(cfg.CacheTTL)
	narrator := tutor.NewNarrator(client, cache, engine.Sink(), logger)
	lesson := tutor.NewLesson(client, narrator, session, logger)

	go printEvents(session.Events())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		session.Stop()
		engine.Close()
		os.Exit(0)
	}()

	runLesson(lesson)
}

func runLesson(lesson *tutor.Lesson) {
	ctx := context.Background()
	stdin := bufio.NewScanner(os.Stdin)

	if !briefingStep(ctx, lesson, stdin) {
		return
	}
	if !discussionStep(ctx, lesson, stdin) {
		return
	}
	reviewStep(ctx, lesson, stdin)
}

// briefingStep fetches and presents the briefing. Returns true to move on to
// the discussion.
func briefingStep(ctx context.Context, lesson *tutor.Lesson, stdin *bufio.Scanner) bool {
	fmt.Println("Fetching today's briefing...")
	briefing, err := lesson.FetchBriefing(ctx, func(done, total int) {
		fmt.Printf("\rPreparing audio... %d/%d", done, total)
		if done == total {
			fmt.Println()
		}
	})
	if err != nil {
		log.Fatalf("Error: %s", genai.UserMessage(err))
	}
	printBriefing(briefing)

	fmt.Println("\nCommands: read | start | quit")
	for prompt(stdin) {
		switch strings.ToLower(strings.TrimSpace(stdin.Text())) {
		case "read":
			if err := lesson.ReadAloud(ctx, briefing.Summary.EN); err != nil {
				fmt.Printf("Error: %s\n", genai.UserMessage(err))
			}
		case "start":
			return true
		case "quit":
			return false
		default:
			fmt.Println("Commands: read | start | quit")
		}
	}
	return false
}

// discussionStep runs the live conversation. Returns true to move on to
// feedback and shadowing.
func discussionStep(ctx context.Context, lesson *tutor.Lesson, stdin *bufio.Scanner) bool {
	fmt.Println("Starting discussion. Speak into your microphone.")
	fmt.Println("Commands: stop | quit (and \"here\" to dismiss an inactivity warning)")
	if err := lesson.StartDiscussion(ctx); err != nil {
		log.Fatalf("Error: %s", tutor.UserMessage(err))
	}
	for prompt(stdin) {
		switch strings.ToLower(strings.TrimSpace(stdin.Text())) {
		case "here":
			lesson.Session().DismissInactivityWarning()
			fmt.Println("Still here. The session stays open.")
		case "stop":
			return true
		case "quit":
			lesson.EndDiscussion()
			return false
		}
	}
	return false
}

// reviewStep presents feedback and runs the shadowing drill.
func reviewStep(ctx context.Context, lesson *tutor.Lesson, stdin *bufio.Scanner) {
	fmt.Println("Discussion over. Generating feedback...")
	feedback, err := lesson.GetFeedback(ctx)
	if err != nil {
		log.Fatalf("Error: %s", genai.UserMessage(err))
	}
	printFeedback(feedback)

	fmt.Println("\nPreparing shadowing practice...")
	sentences, err := lesson.PrepareShadowing(ctx)
	if err != nil {
		log.Fatalf("Error: %s", genai.UserMessage(err))
	}
	for i, s := range sentences {
		fmt.Printf("  %d. %s\n", i+1, s)
	}

	fmt.Println("\nCommands: play <n> | quit")
	for prompt(stdin) {
		fields := strings.Fields(strings.ToLower(stdin.Text()))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "play":
			i := 0
			if len(fields) > 1 {
				fmt.Sscanf(fields[1], "%d", &i)
				i--
			}
			if err := lesson.PlayShadowingSentence(ctx, i); err != nil {
				fmt.Printf("Error: %s\n", genai.UserMessage(err))
			}
		case "quit":
			return
		default:
			fmt.Println("Commands: play <n> | quit")
		}
	}
}

func prompt(stdin *bufio.Scanner) bool {
	fmt.Print("> ")
	return stdin.Scan()
}

func printEvents(events <-chan tutor.Event) {
	for event := range events {
		switch event.Type {
		case tutor.UserSpeaking:
			fmt.Printf("\r\033[K[YOU] Speaking...\n> ")
		case tutor.TurnCommitted:
			if turns, ok := event.Data.([]tutor.TranscriptTurn); ok {
				for _, t := range turns {
					name := "Alex"
					if t.Speaker == tutor.SpeakerUser {
						name = "You"
					}
					fmt.Printf("\r\033[K[%s] %s\n> ", name, t.Text)
				}
			}
		case tutor.AssistantSpeaking:
			fmt.Printf("\r\033[K[ALEX] Speaking...\n> ")
		case tutor.Interrupted:
			fmt.Printf("\r\033[K[ALEX] (interrupted)\n> ")
		case tutor.InactivityWarning:
			fmt.Printf("\r\033[K[SESSION] Are you still there? Type \"here\" to keep going.\n> ")
		case tutor.SessionListening:
			fmt.Printf("\r\033[K[SESSION] Connected. Listening.\n> ")
		case tutor.SessionClosed:
			fmt.Printf("\r\033[K[SESSION] Closed.\n> ")
		case tutor.ErrorEvent:
			fmt.Printf("\r\033[K[ERROR] %v\n> ", event.Data)
		}
	}
}

func printBriefing(b *tutor.Briefing) {
	fmt.Printf("\n=== %s ===\n", b.Topic)
	fmt.Printf("%s (%s, %s)\n%s\n", b.Article.Title, b.Article.Source, b.Article.PublicationDate, b.URL)
	fmt.Printf("\nSummary:\n  %s\n  %s\n", b.Summary.EN, b.Summary.KO)
	fmt.Println("\nKey insights:")
	for _, ki := range b.KeyInsights {
		fmt.Printf("  - %s\n    %s\n", ki.EN, ki.KO)
	}
	fmt.Printf("\nImplications:\n  %s\n  %s\n", b.Implications.EN, b.Implications.KO)
	fmt.Println("\nVocabulary:")
	for _, v := range b.Vocabulary {
		fmt.Printf("  %s: %s (e.g. %s)\n", v.Word, v.Meaning, v.Example)
	}
	fmt.Println("\nDiscussion questions:")
	for i, q := range b.DiscussionQuestions {
		fmt.Printf("  %d. %s\n", i+1, q)
	}
}

func printFeedback(f *tutor.Feedback) {
	fmt.Printf("\n=== Feedback ===\n%s\n", f.OverallAssessment)
	fmt.Println("\nWhat went well:")
	for _, p := range f.PraisePoints {
		fmt.Printf("  - %s\n", p)
	}
	for _, g := range f.GoodExpressions {
		fmt.Printf("  - %q: %s\n", g.Expression, g.Reason)
	}
	if len(f.ImprovementSuggestions.Grammar) > 0 {
		fmt.Println("\nGrammar:")
		for _, c := range f.ImprovementSuggestions.Grammar {
			fmt.Printf("  %q -> %q (%s)\n", c.Original, c.Corrected, c.Reason)
		}
	}
	if len(f.ImprovementSuggestions.Vocabulary) > 0 {
		fmt.Println("\nVocabulary:")
		for _, c := range f.ImprovementSuggestions.Vocabulary {
			fmt.Printf("  %q -> %q (%s)\n", c.Original, c.Corrected, c.Reason)
		}
	}
	if len(f.ImprovementSuggestions.Fluency) > 0 {
		fmt.Println("\nFluency:")
		for _, s := range f.ImprovementSuggestions.Fluency {
			fmt.Printf("  - %s (%s)\n", s.Suggestion, s.Reason)
		}
	}
}

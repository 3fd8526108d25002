package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/kcse-tutor/tutor/internal/model"
	"github.com/kcse-tutor/tutor/internal/notes"
	"github.com/kcse-tutor/tutor/internal/prompt"
	"github.com/kcse-tutor/tutor/internal/render"
)

var errLocked = errors.New("the tutor is locked on this machine; run 'tutor unlock <code>' first")

type askOptions struct {
	subject   string
	image     string
	notesFile string
	book      string
	stream    bool
	html      bool
}

func newAskCmd() *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the tutor a question",
		Long: `Ask a question for a KCSE subject. The question can be given as arguments,
piped on stdin, or replaced by a photo of the question with --image.`,
		Example: `  tutor ask -s Biology "What is osmosis?"
  tutor ask -s Mathematics --image question.jpg
  tutor ask -s English --book "The Pearl" "Discuss the theme of greed"
  tutor ask -s History --notes form2.pdf --stream "Explain the scramble for Africa"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if question == "" && opts.image == "" {
				data, err := readStdinIfPiped()
				if err != nil {
					return err
				}
				question = data
			}
			return runAsk(cmd.Context(), cmd.OutOrStdout(), question, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.subject, "subject", "s", "", "Subject, e.g. Biology (required)")
	cmd.Flags().StringVar(&opts.image, "image", "", "Photo of the question")
	cmd.Flags().StringVar(&opts.notesFile, "notes", "", "Answer only from these notes (.txt, .md, .pdf or .docx)")
	cmd.Flags().StringVar(&opts.book, "book", "", "Literature set book (English and Kiswahili)")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Print the answer as it is written")
	cmd.Flags().BoolVar(&opts.html, "html", false, "Print the answer rendered as HTML")
	cmd.MarkFlagRequired("subject")

	return cmd
}

func runAsk(ctx context.Context, out io.Writer, question string, opts askOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	gate, err := newGate()
	if err != nil {
		return err
	}
	if !gate.Unlocked() {
		return errLocked
	}

	req, err := buildAskRequest(question, opts)
	if err != nil {
		return err
	}

	c := newClient()
	if opts.stream && !opts.html {
		_, err := c.GenerateStream(ctx, req, func(chunk string) {
			fmt.Fprint(out, chunk)
		})
		fmt.Fprintln(out)
		return err
	}

	resp, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	if opts.html {
		html := resp.AnswerHTML
		if html == "" {
			if html, err = render.Markdown(resp.Answer); err != nil {
				return err
			}
		}
		fmt.Fprint(out, html)
		return nil
	}
	fmt.Fprintln(out, resp.Answer)
	return nil
}

// buildAskRequest turns CLI input into a generate request, reading the
// image and notes files.
func buildAskRequest(question string, opts askOptions) (model.GenerateRequest, error) {
	req := model.GenerateRequest{
		Subject:  opts.subject,
		Question: strings.TrimSpace(question),
		Book:     opts.book,
	}
	if opts.html {
		req.Format = "html"
	}

	if _, err := model.ParseSubject(opts.subject); err != nil {
		names := make([]string, 0, len(model.Subjects()))
		for _, s := range model.Subjects() {
			names = append(names, string(s))
		}
		return req, fmt.Errorf("%w (choose one of: %s)", err, strings.Join(names, ", "))
	}

	if opts.image != "" {
		data, err := os.ReadFile(opts.image)
		if err != nil {
			return req, fmt.Errorf("read image: %w", err)
		}
		mt := mimetype.Detect(data)
		if !strings.HasPrefix(mt.String(), "image/") {
			return req, fmt.Errorf("%s is not an image (%s)", opts.image, mt.String())
		}
		url := prompt.DataURL(mt.String(), data)
		req.ImageBase64 = &url
	}

	if opts.notesFile != "" {
		data, err := os.ReadFile(opts.notesFile)
		if err != nil {
			return req, fmt.Errorf("read notes: %w", err)
		}
		text, err := notes.Extract(filepath.Base(opts.notesFile), data)
		if err != nil {
			return req, err
		}
		req.Notes = text
	}

	if req.Question == "" && req.ImageBase64 == nil {
		return req, errors.New("a question or --image is required")
	}
	return req, nil
}

// readStdinIfPiped returns stdin when it is not a terminal.
func readStdinIfPiped() (string, error) {
	st, err := os.Stdin.Stat()
	if err != nil || st.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}

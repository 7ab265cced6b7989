package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/escolab/boletim/internal/models"
)

const (
	studentHelp = `Comandos disponíveis:
/token - Receber o token de acesso à API
/boletim - Ver o seu boletim
/help - Mostrar esta mensagem`

	adminHelp = `Comandos disponíveis:
/token - Receber o token de acesso à API
/chat register <class_id> <nome> - Vincular este chat a uma turma
/aluno map <tg_username> <student_id> - Mapear usuário do Telegram para aluno
/boletim <student_id> - Ver o boletim de um aluno
/help - Mostrar esta mensagem

Exemplos:
/chat register 12 "9º ano B"
/aluno map joao.f joao.ferreira
/boletim joao.ferreira`
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start":   b.handleStart,
		"token":   b.handleToken,
		"boletim": b.handleBoletim,
		"help":    b.handleHelp,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"chat":  b.handleChat,
		"aluno": b.handleAluno,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeStudentCommands(cmd); ok {
		if err := handler(msg); err != nil {
			logger.Error.Printf("Command error: %v", err)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Erro: %v", err))
		}
		return
	}

	if b.admins[msg.From.ID] {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			if err := handler(msg); err != nil {
				logger.Error.Printf("Command error: %v", err)
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("Erro: %v", err))
			}
		}
		return
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	var text string
	if b.admins[msg.From.ID] {
		text = adminHelp
	} else {
		text = studentHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Envie /help para ver a lista de comandos.")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "Olá! Eu acompanho o boletim da sua turma.\n\n"
	if b.admins[msg.From.ID] {
		text += "Você é administrador. Use /help para ver os comandos."
	} else {
		text += "Use /token para receber o seu token de acesso."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleToken(msg *tgbotapi.Message) error {
	ctx := context.Background()

	studentID, err := b.studentForMessage(ctx, msg)
	if err != nil {
		return err
	}

	info, isNew, err := b.tokens.FetchOrCreateToken(ctx, "student", studentID)
	if err != nil {
		return fmt.Errorf("falha ao gerar token: %w", err)
	}

	text := fmt.Sprintf("Seu token: %s", info.Token)
	if isNew {
		text = "Token criado!\n" + text
	}
	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleBoletim(msg *tgbotapi.Message) error {
	ctx := context.Background()

	args := strings.Fields(msg.CommandArguments())

	var studentID string
	if len(args) > 0 {
		if !b.admins[msg.From.ID] {
			return fmt.Errorf("apenas administradores consultam o boletim de outros alunos")
		}
		studentID = args[0]
	} else {
		id, err := b.studentForMessage(ctx, msg)
		if err != nil {
			return err
		}
		studentID = id
	}

	rows, err := b.assembler.StudentReport(studentID)
	if err != nil {
		return fmt.Errorf("falha ao montar o boletim: %w", err)
	}
	if len(rows) == 0 {
		return b.sendMessage(msg.Chat.ID, "Nenhuma disciplina fechada ainda.")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Boletim de %s:\n", studentID))
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf(
			"%s: P1 %s | P2 %s | T1 %s | T2 %s | T3 %s | P3 %s | média %s | %s\n",
			row.Subject,
			row.ExamOne, row.ExamTwo,
			row.AsgOne, row.AsgTwo, row.AsgThree,
			row.MakeUp,
			row.Average,
			row.StatusLabel,
		))
	}
	return b.sendMessage(msg.Chat.ID, sb.String())
}

func (b *Bot) handleChat(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 || args[0] != "register" {
		return b.sendMessage(msg.Chat.ID, "Uso:\n/chat register <class_id> <nome>")
	}

	classID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("class_id inválido: %s", args[1])
	}

	name := strings.Trim(strings.Join(args[2:], " "), `"`)
	mapping := &models.ChatClassMapping{
		ClassID:         classID,
		Name:            name,
		AssociationTime: time.Now().UTC(),
		RegisteredBy:    msg.From.ID,
	}

	if err := b.tokens.AssociateChatWithClass(context.Background(), msg.Chat.ID, mapping); err != nil {
		return fmt.Errorf("falha ao registrar o chat: %w", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Chat vinculado à turma %d (%s)", classID, name))
}

func (b *Bot) handleAluno(msg *tgbotapi.Message) error {
	ctx := context.Background()

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 3 || args[0] != "map" {
		return b.sendMessage(msg.Chat.ID, "Uso:\n/aluno map <tg_username> <student_id>")
	}

	mapping, err := b.tokens.FetchClassMappingByChatID(ctx, msg.Chat.ID)
	if err != nil {
		return fmt.Errorf("registre o chat primeiro com /chat register: %w", err)
	}

	tgUsername := strings.TrimPrefix(args[1], "@")
	studentID := args[2]

	if err := b.tokens.SaveStudentTelegramMapping(ctx, mapping.ClassID, tgUsername, studentID); err != nil {
		return fmt.Errorf("falha ao salvar o mapeamento: %w", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("@%s mapeado para %s na turma %d", tgUsername, studentID, mapping.ClassID))
}

// studentForMessage resolves the Telegram sender to a student id through
// the chat's class mapping.
func (b *Bot) studentForMessage(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	mapping, err := b.tokens.FetchClassMappingByChatID(ctx, msg.Chat.ID)
	if err != nil {
		return "", fmt.Errorf("este chat não está vinculado a uma turma")
	}

	studentID, err := b.tokens.FetchStudentIDByTelegram(ctx, mapping.ClassID, msg.From.UserName)
	if err != nil {
		return "", fmt.Errorf("seu usuário ainda não foi mapeado, peça ao administrador")
	}
	return studentID, nil
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	reply := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(reply); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

package handler

const (
	consentText = "Antes de começar, preciso do seu consentimento.\n\n" +
		"Os arquivos e perguntas que você enviar serão processados por um serviço de inteligência artificial " +
		"para gerar as descrições. As referências aos arquivos e o histórico da conversa ficam criptografados " +
		"e são apagados após alguns minutos sem uso.\n\n" +
		"Toque em \"Li e aceito\" para continuar."

	consentAcceptedText = "Obrigado! Consentimento registrado."

	noContextText    = "Envie primeiro uma foto, vídeo, áudio ou documento. Depois você pode fazer perguntas sobre ele."
	expiredText      = "A conversa sobre o último arquivo expirou por inatividade. Envie o arquivo novamente."
	failureText      = "Não foi possível processar agora. Tente novamente em instantes."
	emptyAnswerText  = "Não consegui gerar uma resposta para esse conteúdo."
	processingText   = "⏳ Analisando o arquivo..."
	fileTooLargeText = "O arquivo é grande demais. Envie um arquivo de até 20 MB."
	sweepDoneText    = "Sessões inativas encerradas: %d"
)
